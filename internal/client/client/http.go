package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
)

const maxErrorBody = 64 << 10

// HTTPClient talks to the FridgeKeeper REST API.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	// anon serves /health; reachability does not depend on the session.
	anon *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the API rooted at baseURL. Requests
// carry a bearer token from ts; a nil ts sends unauthenticated requests.
// Ping never carries a token.
func NewHTTPClient(baseURL string, ts oauth2.TokenSource, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse server url: unsupported scheme %q", u.Scheme)
	}

	anon := &http.Client{Timeout: timeout}
	hc := anon
	if ts != nil {
		hc = &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		}
	}
	return &HTTPClient{baseURL: u, http: hc, anon: anon}, nil
}

func (c *HTTPClient) CreateItem(ctx context.Context, item models.Item) (PushAck, error) {
	var ack PushAck
	err := c.do(ctx, http.MethodPost, "/items", nil, item, &ack)
	return ack, err
}

func (c *HTTPClient) DeleteItem(ctx context.Context, clientID string) error {
	return c.do(ctx, http.MethodDelete, "/items/"+url.PathEscape(clientID), nil, nil, nil)
}

func (c *HTTPClient) CreateNote(ctx context.Context, note models.Note) (PushAck, error) {
	body := noteRequest{
		ClientID:  note.ClientID,
		Body:      note.Body,
		Pinned:    note.Pinned,
		CreatedAt: note.CreatedAt.UTC(),
	}
	var ack PushAck
	err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(note.ItemClientID)+"/notes", nil, body, &ack)
	return ack, err
}

func (c *HTTPClient) DeleteNote(ctx context.Context, clientID string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(clientID), nil, nil, nil)
}

func (c *HTTPClient) ItemsSince(ctx context.Context, since time.Time) (*ItemDelta, error) {
	var d ItemDelta
	if err := c.do(ctx, http.MethodGet, "/sync/items", sinceQuery(since), nil, &d); err != nil {
		return nil, err
	}
	if d.ServerTime.IsZero() {
		return nil, fmt.Errorf("item delta: response has no serverTime")
	}
	return &d, nil
}

func (c *HTTPClient) NotesSince(ctx context.Context, since time.Time) (*NoteDelta, error) {
	var d NoteDelta
	if err := c.do(ctx, http.MethodGet, "/sync/notes", sinceQuery(since), nil, &d); err != nil {
		return nil, err
	}
	if d.ServerTime.IsZero() {
		return nil, fmt.Errorf("note delta: response has no serverTime")
	}
	return &d, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.send(ctx, c.anon, http.MethodGet, "/health", nil, nil, nil)
}

func sinceQuery(since time.Time) url.Values {
	if since.IsZero() {
		since = time.Unix(0, 0)
	}
	return url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	return c.send(ctx, c.http, method, path, query, in, out)
}

func (c *HTTPClient) send(ctx context.Context, hc *http.Client, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(resp.StatusCode, raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return mapTransportError(ctx, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func mapTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) || errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return &TransportError{Err: err}
}

// errorDetail extracts {error|message|detail} from an error body, falling
// back to the raw text and then the status text.
func errorDetail(code int, raw []byte) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(raw, &env) == nil {
		for _, s := range []string{env.Detail, env.Message, env.Error} {
			if s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" && !strings.HasPrefix(s, "{") {
		return s
	}
	return http.StatusText(code)
}
