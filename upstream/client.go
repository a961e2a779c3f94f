// Package upstream talks to the generative-AI service that streams
// assistant responses: session creation, prompt submission, and a
// line-oriented SSE decoder filtered to one session at a time.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"parley/apperr"

	"github.com/rs/zerolog/log"
)

// Session is the upstream service's handle for one conversation.
type Session struct {
	Id string `json:"id"`
}

// Client talks to a single upstream generative-AI service.
type Client interface {
	// CreateSession opens a new upstream session.
	CreateSession(ctx context.Context) (Session, error)
	// SendMessage opens the event stream, submits content as a prompt
	// against sessionID, and returns the stream of interpreted events
	// filtered to that session.
	SendMessage(ctx context.Context, sessionID, content string) (<-chan StreamEvent, error)
	// SubscribeEvents opens the event stream filtered to sessionID
	// without submitting a prompt.
	SubscribeEvents(ctx context.Context, sessionID string) (<-chan StreamEvent, error)
}

type client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL, the upstream service's root.
func NewClient(baseURL string) Client {
	return &client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 0, // the event stream is long-lived; per-call contexts bound it instead
		},
	}
}

func (c *client) CreateSession(ctx context.Context) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", bytes.NewReader([]byte("{}")))
	if err != nil {
		return Session{}, apperr.Internalf("building create-session request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, apperr.Upstreamf(err, "create session")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return Session{}, apperr.Upstreamf(nil, "create session: %s: %s", resp.Status, bodyPreview(resp.Body))
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Session{}, apperr.Upstreamf(err, "decoding session response")
	}
	return session, nil
}

func (c *client) SendMessage(ctx context.Context, sessionID, content string) (<-chan StreamEvent, error) {
	events, err := c.openEventStream(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"parts": []map[string]string{{"type": "text", "text": content}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Internalf("encoding prompt payload: %v", err)
	}

	url := fmt.Sprintf("%s/session/%s/prompt_async", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internalf("building prompt request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstreamf(err, "submit prompt")
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return nil, apperr.Upstreamf(nil, "submit prompt: unexpected status %s", resp.Status)
	}

	return events, nil
}

func (c *client) SubscribeEvents(ctx context.Context, sessionID string) (<-chan StreamEvent, error) {
	return c.openEventStream(ctx, sessionID)
}

// openEventStream opens the shared GET /event long-lived connection and
// spawns a goroutine that decodes it into session-filtered StreamEvents.
func (c *client) openEventStream(ctx context.Context, sessionID string) (<-chan StreamEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/event", nil)
	if err != nil {
		return nil, apperr.Internalf("building event-stream request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstreamf(err, "open event stream")
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, apperr.Upstreamf(nil, "open event stream: %s: %s", resp.Status, bodyPreview(resp.Body))
	}

	out := make(chan StreamEvent, 64)
	go decodeEvents(resp.Body, sessionID, out)
	return out, nil
}

func decodeEvents(body io.ReadCloser, sessionID string, out chan<- StreamEvent) {
	defer body.Close()
	defer close(out)

	dec := newSSEDecoder(body)
	for {
		raw, err := dec.next()
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Msg("upstream event stream ended")
			}
			return
		}

		event, ok := interpret(raw, sessionID)
		if !ok {
			continue
		}
		out <- event
		if event.Kind == StreamDone || event.Kind == StreamError {
			return
		}
	}
}

// bodyPreview reads a size-bounded prefix of a response body for
// inclusion in an error message.
func bodyPreview(r io.Reader) string {
	const maxPreview = 512
	buf := make([]byte, maxPreview)
	n, _ := io.ReadFull(r, buf)
	return string(buf[:n])
}
