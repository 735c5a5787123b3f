// Package client talks to the tweetsmith HTTP API on behalf of an authenticated user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/protocol"
	"github.com/kiraleos/tweetsmith/internal/store"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	useWebSocket bool
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithWebSocket makes Generate use the WebSocket endpoint instead of the chunked text body.
func WithWebSocket() Option {
	return func(c *Client) { c.useWebSocket = true }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SaveChat(ctx context.Context, chatID string, record store.ChatRecord) error {
	var resp protocol.SaveResponse
	err := c.chatAction(ctx, protocol.ChatRequest{Action: protocol.ActionSave, ChatID: chatID, ChatData: &record}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("server did not confirm save of chat %s", chatID)
	}
	return nil
}

// GetChat returns nil when the chat does not exist.
func (c *Client) GetChat(ctx context.Context, chatID string) (*store.ChatRecord, error) {
	var resp protocol.GetResponse
	if err := c.chatAction(ctx, protocol.ChatRequest{Action: protocol.ActionGet, ChatID: chatID}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) ListChatIDs(ctx context.Context) ([]string, error) {
	var resp protocol.ListResponse
	if err := c.chatAction(ctx, protocol.ChatRequest{Action: protocol.ActionList}, &resp); err != nil {
		return nil, err
	}
	if resp.ChatIDs == nil {
		resp.ChatIDs = []string{}
	}
	return resp.ChatIDs, nil
}

func (c *Client) chatAction(ctx context.Context, req protocol.ChatRequest, out any) error {
	resp, err := c.post(ctx, "/api/chats", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.Action, err)
	}
	return nil
}

// Generate starts a tweet generation. Fragments arrive through the returned iterator, which
// ends with io.EOF on success and a *StreamError if the generation broke off.
func (c *Client) Generate(ctx context.Context, spec core.PromptSpec) (core.FragmentIterator, error) {
	if c.useWebSocket {
		return c.generateWS(ctx, spec)
	}

	resp, err := c.post(ctx, "/api/generate", spec)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return newTextStream(resp.Body), nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e protocol.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		e.Error = strings.TrimSpace(string(body))
	}
	return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
}
