package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"modeium/backend/internal/chatclient"
	"modeium/backend/internal/config"
	"modeium/backend/internal/models"

	"github.com/peterh/liner"
)

const helpText = `commands:
  /models            list models
  /model <name>      switch model
  /key <api key>     submit the API key for credentialed models
  /attach <path>     attach a .txt, .png, .jpg or .pdf file to the next message
  /detach            drop the attached file
  /signin <token>    sign in with a new session token
  /signout           sign out and clear the conversation
  /quit              exit
Ctrl-C while waiting for a reply cancels it.`

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("load client config: %v", err)
	}

	registry, err := models.LoadFile(os.Getenv("MODELS_FILE"))
	if err != nil {
		log.Fatalf("load models: %v", err)
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := historyPath()
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		saveHistory(line, historyFile)
		_ = line.Close()
	}()

	identity := chatclient.NewStaticIdentity(cfg.SessionToken)
	client := chatclient.NewClient(chatclient.NewRouter(cfg.BaseURL, cfg.Timeout, nil), registry, identity)
	defer client.Close()

	ctx := context.Background()
	if cfg.SessionToken == "" {
		token, err := line.PasswordPrompt("session token: ")
		if err != nil {
			return
		}
		identity.SetToken(token)
	}
	if err := client.Open(ctx); err != nil {
		log.Fatalf("sign in: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigChan {
			if client.Cancel() {
				fmt.Fprintln(os.Stderr, "\n[cancelled]")
			}
		}
	}()

	fmt.Printf("connected to %s, model %s. /help for commands.\n", cfg.BaseURL, client.Model().Name)
	for {
		input, err := line.Prompt(prompt(client))
		if err != nil {
			fmt.Println()
			return
		}
		if keepInHistory(input) {
			line.AppendHistory(input)
		}

		if strings.HasPrefix(strings.TrimSpace(input), "/") {
			if !runCommand(ctx, client, identity, strings.TrimSpace(input)) {
				return
			}
			continue
		}

		before := len(client.Messages())
		if err := client.Submit(ctx, input); err != nil {
			reportSubmitError(client, err)
			continue
		}
		printNewMessages(client, before)
	}
}

func prompt(client *chatclient.Client) string {
	name := client.Model().Name
	if att, ok := client.Attachment(); ok {
		return fmt.Sprintf("%s [%s]> ", name, att.Name)
	}
	return name + "> "
}

func runCommand(ctx context.Context, client *chatclient.Client, identity *chatclient.StaticIdentity, input string) bool {
	command, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Println(helpText)
	case "/models":
		current := client.Model().Slug()
		for _, m := range client.Models() {
			marker := " "
			if m.Slug() == current {
				marker = "*"
			}
			gate := "free"
			if m.RequiresCredential {
				gate = "API key"
			}
			fmt.Printf("%s %-26s %s\n", marker, m.Name, gate)
		}
	case "/model":
		needsKey, err := client.SelectModel(arg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return true
		}
		if needsKey {
			fmt.Printf("Please submit an API key for %s\n", client.Model().Name)
		}
	case "/key":
		if err := client.SubmitCredential(arg); err != nil {
			fmt.Printf("Error: %v\n", err)
			return true
		}
		fmt.Println("API key submitted successfully!")
	case "/attach":
		d, err := client.Attach(arg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return true
		}
		fmt.Printf("attached %s (%s, %d bytes)\n", d.Name, d.MIMEType, d.Size)
	case "/detach":
		client.ClearAttachment()
	case "/signin":
		identity.SetToken(arg)
		if err := client.SignIn(ctx); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case "/signout":
		if err := client.SignOut(ctx); err != nil {
			fmt.Printf("Error signing out: %v\n", err)
			return true
		}
		fmt.Println("signed out. /signin <token> to continue.")
	default:
		fmt.Printf("unknown command %s. /help for commands.\n", command)
	}
	return true
}

func reportSubmitError(client *chatclient.Client, err error) {
	var httpErr *chatclient.UpstreamHTTPError
	switch {
	case errors.Is(err, chatclient.ErrCancelled):
	case errors.Is(err, chatclient.ErrCredentialRequired):
		fmt.Printf("Please submit your API key for %s first (/key).\n", client.Model().Name)
	case errors.As(err, &httpErr):
		fmt.Printf("Error: %v\n", httpErr)
	default:
		fmt.Printf("Error: %v\n", err)
	}
}

func printNewMessages(client *chatclient.Client, from int) {
	messages := client.Messages()
	if from > len(messages) {
		from = 0
	}
	for _, msg := range messages[from:] {
		if msg.Sender != chatclient.SenderBot {
			continue
		}
		fmt.Println(msg.Content)
	}
}

// keepInHistory keeps credentials out of the history file.
func keepInHistory(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}
	return !strings.HasPrefix(trimmed, "/key") && !strings.HasPrefix(trimmed, "/signin")
}

func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "modeium", "chat_history")
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
