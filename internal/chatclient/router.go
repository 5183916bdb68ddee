package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"modeium/backend/internal/adapters"
	"modeium/backend/internal/attachment"
	"modeium/backend/internal/models"
)

const (
	maxReplyBytes     = 16 * 1024 * 1024
	maxErrorBodyBytes = 8 * 1024
)

// Submission is one send as the user composed it.
type Submission struct {
	Model      models.Descriptor
	Text       string
	Attachment *attachment.Descriptor
	// APIKey is the credential accepted for the session, if any.
	APIKey string
}

// Router sends submissions to the chat server's message endpoints.
type Router struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	cookieName string

	mu      sync.RWMutex
	session string
}

func NewRouter(baseURL string, timeout time.Duration, httpClient *http.Client) *Router {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Router{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		timeout:    timeout,
		cookieName: "auth",
	}
}

func (r *Router) sessionToken() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

func (r *Router) setSessionToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = token
}

// Send validates sub and issues exactly one POST for it. Cancellation of ctx
// yields ErrCancelled; expiry of the client deadline yields ErrUpstreamTimeout.
func (r *Router) Send(ctx context.Context, sub Submission) (*adapters.Success, error) {
	text := strings.TrimSpace(sub.Text)
	if text == "" && sub.Attachment == nil {
		return nil, ErrEmptyInput
	}
	if sub.Model.RequiresCredential && strings.TrimSpace(sub.APIKey) == "" {
		return nil, ErrCredentialRequired
	}

	body, contentType, err := buildForm(text, sub)
	if err != nil {
		return nil, err
	}

	reqCtx := ctx
	cancel := func() {}
	if r.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	endpoint := r.baseURL + "/api" + models.Route(sub.Model, sub.Attachment != nil)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build message request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if token := r.sessionToken(); token != "" {
		httpReq.AddCookie(&http.Cookie{Name: r.cookieName, Value: token})
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, readUpstreamError(resp)
	}

	var success adapters.Success
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&success); err != nil {
		if ctxErr := classifyTransportError(ctx, reqCtx, err); errors.Is(ctxErr, ErrCancelled) || errors.Is(ctxErr, ErrUpstreamTimeout) {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("decode message response: %w", err)
	}
	return &success, nil
}

func buildForm(text string, sub Submission) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if text != "" {
		if err := writer.WriteField("message", text); err != nil {
			return nil, "", fmt.Errorf("write message field: %w", err)
		}
	}
	if att := sub.Attachment; att != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, att.Name))
		header.Set("Content-Type", att.MIMEType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}
	if sub.Model.RequiresCredential {
		if err := writer.WriteField("apiKey", strings.TrimSpace(sub.APIKey)); err != nil {
			return nil, "", fmt.Errorf("write apiKey field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

func classifyTransportError(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil {
		return ErrCancelled
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return ErrUpstreamTimeout
	}
	return fmt.Errorf("send message: %w", err)
}

func readUpstreamError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := ""
	if err := json.Unmarshal(raw, &parsed); err == nil {
		message = strings.TrimSpace(parsed.Error)
		if detail := strings.TrimSpace(parsed.Message); detail != "" {
			message = strings.TrimSpace(message + ": " + detail)
		}
	}
	return &UpstreamHTTPError{Status: resp.StatusCode, Message: message}
}

// SignIn hands the identity token to the server, which sets the session
// cookie. The token is attached to every later message request.
func (r *Router) SignIn(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNotSignedIn
	}
	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("marshal sign-in request: %w", err)
	}
	if err := r.cookieRequest(ctx, http.MethodPost, bytes.NewReader(payload)); err != nil {
		return err
	}
	r.setSessionToken(token)
	return nil
}

func (r *Router) SignOut(ctx context.Context) error {
	defer r.setSessionToken("")
	return r.cookieRequest(ctx, http.MethodDelete, nil)
}

func (r *Router) cookieRequest(ctx context.Context, method string, body io.Reader) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, r.baseURL+"/api/auth/cookie", body)
	if err != nil {
		return fmt.Errorf("build cookie request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cookie request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return readUpstreamError(resp)
	}
	return nil
}
