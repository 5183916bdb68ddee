package chatclient

import "sync"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

type ImageData struct {
	Data string `json:"data"`
	Type string `json:"type"`
}

// Message is one transcript entry. ImageData is set only for image entries.
type Message struct {
	Content   string     `json:"content"`
	Sender    Sender     `json:"sender"`
	Kind      Kind       `json:"type"`
	ImageData *ImageData `json:"imageData,omitempty"`
}

// Conversation is the append-only transcript of one session.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
}

func (c *Conversation) AppendUser(text string) {
	c.append(Message{Content: text, Sender: SenderUser, Kind: KindText})
}

func (c *Conversation) AppendUserImage(data, mimeType string) {
	c.append(Message{Content: "Image", Sender: SenderUser, Kind: KindImage, ImageData: &ImageData{Data: data, Type: mimeType}})
}

func (c *Conversation) AppendBot(text string) {
	c.append(Message{Content: text, Sender: SenderBot, Kind: KindText})
}

func (c *Conversation) append(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
