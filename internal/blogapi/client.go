// Package blogapi is the HTTP client for the remote blog API that owns posts and users.
package blogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const userAgent = "postdesk/1.0"

var maxResponseBytes int64 = 4 << 20

// HTTPDoer is satisfied by *http.Client and by test doubles.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the blog API.
type Client struct {
	http    HTTPDoer
	baseURL string
}

// NewClient creates a client for baseURL. A zero timeout disables the client timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// SetHTTPClient swaps the transport, mostly for tests.
func (c *Client) SetHTTPClient(client HTTPDoer) {
	if client == nil {
		c.http = http.DefaultClient
		return
	}
	c.http = client
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetPost fetches a single post by slug.
func (c *Client) GetPost(ctx context.Context, slug string) (*Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrSlugRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.postURL(slug), nil)
	if err != nil {
		return nil, fmt.Errorf("build get post request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var post Post
	if err := c.do(req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost sends the multipart update for slug with the caller's bearer token.
func (c *Client) UpdatePost(ctx context.Context, slug, token string, form *UpdateForm) (*Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrSlugRequired
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrTokenRequired
	}

	body, contentType, err := EncodeUpdateForm(form)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.postURL(slug), body)
	if err != nil {
		return nil, fmt.Errorf("build update post request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))

	var updated Post
	if err := c.do(req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Login exchanges credentials for a user profile carrying the API token.
func (c *Client) Login(ctx context.Context, email, password string) (*UserInfo, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/users/login", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var user UserInfo
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// EncodeUpdateForm writes the postPicture and document parts.
func EncodeUpdateForm(form *UpdateForm) (io.Reader, string, error) {
	if form == nil {
		form = &UpdateForm{}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if pic := form.Picture; pic != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="postPicture"; filename="%s"`, escapeQuotes(pic.Filename)))
		contentType := pic.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create picture part: %w", err)
		}
		if _, err := part.Write(pic.Data); err != nil {
			return nil, "", fmt.Errorf("write picture part: %w", err)
		}
	}

	document, err := form.DocumentJSON()
	if err != nil {
		return nil, "", fmt.Errorf("encode document part: %w", err)
	}
	if err := writer.WriteField("document", document); err != nil {
		return nil, "", fmt.Errorf("write document part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func (c *Client) postURL(slug string) string {
	return c.baseURL + "/api/posts/" + url.PathEscape(slug)
}

func (c *Client) do(req *http.Request, dst any) error {
	req.Header.Set("User-Agent", userAgent)

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}
	oversized := int64(len(raw)) > maxResponseBytes
	if oversized {
		raw = raw[:maxResponseBytes]
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp.StatusCode, http.StatusText(resp.StatusCode), errorMessage(raw))
	}
	if oversized {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrResponseTooLarge)
	}

	if dst == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// errorMessage pulls the human readable text out of an error body.
func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		switch v := payload.Error.(type) {
		case string:
			if msg := strings.TrimSpace(v); msg != "" {
				return msg
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
		return ""
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 512 {
		text = text[:512]
	}
	return text
}
