package note

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// StatusError is a non-2xx response from the backend, carrying the
// server's message payload when one was present.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("unexpected status code %d", e.Code)
}

// Client talks to the notes REST backend. The caller's identity travels
// in headers; authentication itself is the concern of a collaborator
// outside this module.
type Client struct {
	base *url.URL
	http *http.Client

	userID   int64
	userName string
}

// NewClient builds a client against the API base URL (e.g.
// "http://localhost:8080") acting as the given user.
func NewClient(baseURL string, userID int64, userName string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse api base url: %w", err)
	}
	return &Client{base: u, http: http.DefaultClient, userID: userID, userName: userName}, nil
}

// List fetches the caller's notes, newest first.
func (c *Client) List(ctx context.Context) ([]Note, error) {
	var out []Note
	if err := c.do(ctx, http.MethodGet, c.base.JoinPath("notes").String()+"/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create makes a new note owned by the caller.
func (c *Client) Create(ctx context.Context, title, content string) (*Note, error) {
	var out Note
	body := map[string]string{"title": title, "content": content}
	if err := c.do(ctx, http.MethodPost, c.base.JoinPath("notes").String()+"/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches one note by id.
func (c *Client) Get(ctx context.Context, id int64) (*Note, error) {
	var out Note
	if err := c.do(ctx, http.MethodGet, c.notePath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update writes the editable fields of a note.
func (c *Client) Update(ctx context.Context, id int64, u Update) (*Note, error) {
	var out Note
	if err := c.do(ctx, http.MethodPut, c.notePath(id), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a note owned by the caller.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, c.notePath(id), nil, nil)
}

// GetShared fetches a note through its share token, the path non-owners
// use from a share link.
func (c *Client) GetShared(ctx context.Context, token string) (*Note, error) {
	var out Note
	if err := c.do(ctx, http.MethodGet, c.sharePath(token), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateShared writes the editable fields through a share token.
func (c *Client) UpdateShared(ctx context.Context, token string, u Update) (*Note, error) {
	var out Note
	if err := c.do(ctx, http.MethodPut, c.sharePath(token), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) notePath(id int64) string {
	return c.base.JoinPath("notes", strconv.FormatInt(id, 10)).String() + "/"
}

func (c *Client) sharePath(token string) string {
	return c.base.JoinPath("notes", "share", token).String() + "/"
}

func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", strconv.FormatInt(c.userID, 10))
	req.Header.Set("X-User-Name", c.userName)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &StatusError{Code: resp.StatusCode, Message: payload.Message}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
