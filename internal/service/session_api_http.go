package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-chat-core/pkg/sessionbus"

	"github.com/google/uuid"
)

// httpSessionAPI talks to the external session-lifecycle service. The core
// only relays its successful responses onto the bus; it owns no session
// persistence itself.
type httpSessionAPI struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSessionAPI(endpoint string) ISessionAPI {
	return &httpSessionAPI{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *httpSessionAPI) CreateSession(ctx context.Context, userId uuid.UUID, title string) (*sessionbus.Session, error) {
	body, _ := json.Marshal(map[string]string{
		"user_id": userId.String(),
		"title":   title,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session api request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		resBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("session api error: status %d, body: %s", res.StatusCode, string(resBody))
	}

	var session sessionbus.Session
	if err := json.NewDecoder(res.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (a *httpSessionAPI) RenameSession(ctx context.Context, userId uuid.UUID, sessionId, title string) error {
	body, _ := json.Marshal(map[string]string{
		"user_id": userId.String(),
		"title":   title,
	})
	return a.do(ctx, http.MethodPut, fmt.Sprintf("%s/%s/title", a.endpoint, sessionId), body)
}

func (a *httpSessionAPI) DeleteSession(ctx context.Context, userId uuid.UUID, sessionId string) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%s", a.endpoint, sessionId), nil)
}

func (a *httpSessionAPI) do(ctx context.Context, method, url string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("session api request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		resBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("session api error: status %d, body: %s", res.StatusCode, string(resBody))
	}
	return nil
}
