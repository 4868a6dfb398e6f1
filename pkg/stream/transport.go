package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// FileContext is cached extracted-document context attached to a send.
type FileContext struct {
	ExtractedText string `json:"extractedText"`
	FileURL       string `json:"fileUrl"`
	FileName      string `json:"fileName"`
}

// SendPayload is the caller-supplied message body.
type SendPayload struct {
	Text        string       `json:"text"`
	FileContext *FileContext `json:"file_context,omitempty"`
}

// Request is what the transport needs to open one chunked response.
type Request struct {
	SessionID string
	Token     string
	Payload   SendPayload
}

// Transport opens the message-send endpoint and hands back the raw chunked
// body. The caller owns closing it.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// CredentialSource supplies the credential for opening a stream.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

type staticCredentials struct {
	token string
}

// StaticCredentials serves a fixed API token, failing when none was
// configured.
func StaticCredentials(token string) CredentialSource {
	return &staticCredentials{token: token}
}

func (c *staticCredentials) Token(ctx context.Context) (string, error) {
	if c.token == "" {
		return "", ErrUnauthenticated
	}
	return c.token, nil
}

type httpTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport posts to the message-send endpoint and returns the
// chunked NDJSON body. No overall client timeout: a healthy stream can
// legitimately run for minutes; cancellation comes from the request context.
func NewHTTPTransport(endpoint string) Transport {
	return &httpTransport{
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

func (t *httpTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	body := map[string]interface{}{
		"session_id": req.SessionID,
		"text":       req.Payload.Text,
		"stream":     true,
	}
	if req.Payload.FileContext != nil {
		body["file_context"] = req.Payload.FileContext
	}

	payloadJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewBuffer(payloadJSON))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	res, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream endpoint request failed: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		resBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		res.Body.Close()
		if res.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("stream endpoint error: status %d, body: %s", res.StatusCode, string(resBody))
	}

	return res.Body, nil
}
