package chatclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"modeium/backend/internal/attachment"
	"modeium/backend/internal/intercept"
	"modeium/backend/internal/models"
)

// Client ties the model selection, credential, attachment and transcript of
// one session to a Router.
type Client struct {
	router   *Router
	identity Identity
	registry *models.Registry

	inFlight     InFlight
	conversation Conversation

	selMu     sync.Mutex
	selection attachment.Selection

	mu     sync.Mutex
	model  models.Descriptor
	apiKey string
}

func NewClient(router *Router, registry *models.Registry, identity Identity) *Client {
	return &Client{
		router:   router,
		identity: identity,
		registry: registry,
		model:    registry.Default(),
	}
}

// Open starts the identity and signs in with its token.
func (c *Client) Open(ctx context.Context) error {
	if err := c.identity.Open(ctx); err != nil {
		return fmt.Errorf("open identity: %w", err)
	}
	return c.SignIn(ctx)
}

func (c *Client) SignIn(ctx context.Context) error {
	token, err := c.identity.Token(ctx)
	if err != nil {
		return err
	}
	return c.router.SignIn(ctx, token)
}

// SignOut ends the identity session, clears the server cookie and resets the
// transcript. An outstanding request is cancelled first.
func (c *Client) SignOut(ctx context.Context) error {
	c.inFlight.Cancel()
	if err := c.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out identity: %w", err)
	}
	err := c.router.SignOut(ctx)
	c.conversation.Reset()
	c.ClearAttachment()
	c.mu.Lock()
	c.apiKey = ""
	c.mu.Unlock()
	return err
}

func (c *Client) Close() error {
	c.inFlight.Cancel()
	return c.identity.Close()
}

func (c *Client) Models() []models.Descriptor {
	return c.registry.All()
}

func (c *Client) Model() models.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// SelectModel switches models. It reports whether the new model still needs
// a credential before it can be used.
func (c *Client) SelectModel(name string) (needsCredential bool, err error) {
	model, err := c.registry.ByName(name)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	return model.RequiresCredential && c.apiKey == "", nil
}

// SubmitCredential accepts the API key for the rest of the session.
func (c *Client) SubmitCredential(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
	return nil
}

func (c *Client) HasCredential() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKey != ""
}

// Attach validates the file at path and selects it for the next send. A
// rejected file also clears any earlier selection.
func (c *Client) Attach(path string) (attachment.Descriptor, error) {
	c.selMu.Lock()
	defer c.selMu.Unlock()

	d, err := attachment.Open(path)
	if err != nil {
		c.selection.Clear()
		return attachment.Descriptor{}, err
	}
	if err := c.selection.Select(d); err != nil {
		return attachment.Descriptor{}, err
	}
	return d, nil
}

func (c *Client) Attachment() (attachment.Descriptor, bool) {
	c.selMu.Lock()
	defer c.selMu.Unlock()
	return c.selection.Current()
}

func (c *Client) ClearAttachment() {
	c.selMu.Lock()
	defer c.selMu.Unlock()
	c.selection.Clear()
}

func (c *Client) takeAttachment() {
	c.selMu.Lock()
	defer c.selMu.Unlock()
	c.selection.Take()
}

// Cancel aborts the outstanding request, if any.
func (c *Client) Cancel() bool {
	return c.inFlight.Cancel()
}

func (c *Client) Busy() bool {
	return c.inFlight.Busy()
}

func (c *Client) Messages() []Message {
	return c.conversation.Messages()
}

// Submit sends text and the selected attachment with the current model.
// Founder questions are answered locally before any credential check. The
// user and bot entries are appended together once the reply is applied. A
// failed or cancelled request leaves the transcript unchanged.
func (c *Client) Submit(ctx context.Context, text string) error {
	current, hasAttachment := c.Attachment()
	if strings.TrimSpace(text) == "" && !hasAttachment {
		return ErrEmptyInput
	}

	if reply, ok := intercept.Match(text); ok {
		c.conversation.append(
			Message{Content: text, Sender: SenderUser, Kind: KindText},
			Message{Content: reply, Sender: SenderBot, Kind: KindText},
		)
		c.ClearAttachment()
		return nil
	}

	c.mu.Lock()
	model, apiKey := c.model, c.apiKey
	c.mu.Unlock()
	if model.RequiresCredential && apiKey == "" {
		return ErrCredentialRequired
	}

	req, err := c.inFlight.Begin(ctx)
	if err != nil {
		return err
	}
	defer c.inFlight.Finish(req)

	sub := Submission{Model: model, Text: text}
	if model.RequiresCredential {
		sub.APIKey = apiKey
	}
	if hasAttachment {
		c.takeAttachment()
		sub.Attachment = &current
	}

	success, sendErr := c.router.Send(req.Context(), sub)
	if errors.Is(sendErr, ErrCancelled) {
		return ErrCancelled
	}
	if sendErr != nil {
		if !c.inFlight.IsCurrent(req) {
			return ErrCancelled
		}
		return sendErr
	}

	entries := userEntries(text, sub.Attachment)
	if success.BotResponse != "" {
		entries = append(entries, Message{Content: success.BotResponse, Sender: SenderBot, Kind: KindText})
	}
	if !c.inFlight.Apply(req, func() { c.conversation.append(entries...) }) {
		return ErrCancelled
	}
	return nil
}

func userEntries(text string, att *attachment.Descriptor) []Message {
	var entries []Message
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		entries = append(entries, Message{Content: text, Sender: SenderUser, Kind: KindText})
	}
	if att != nil && att.IsImage() {
		entries = append(entries, Message{
			Content:   "Image",
			Sender:    SenderUser,
			Kind:      KindImage,
			ImageData: &ImageData{Data: base64.StdEncoding.EncodeToString(att.Data), Type: att.MIMEType},
		})
	}
	return entries
}
