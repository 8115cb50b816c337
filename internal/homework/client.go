package homework

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "hwbot/pkg/logx"
)

const (
	DefaultEndpoint = "https://praktikum.yandex.ru/api/user_api/homework_statuses/"
	DefaultTimeout  = 30 * time.Second

	maxBodyBytes   = 1 << 20
	maxBodyExcerpt = 200
	redactedToken  = "OAuth ***"
)

// errorKeys are the envelope keys the API uses to signal a refusal.
var errorKeys = []string{"code", "error"}

// Config configures the API client.
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration

	// HTTPClient overrides the default client (Timeout is then ignored).
	HTTPClient *http.Client
}

// Client polls the homework status endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	log      logx.Logger
}

func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrNoToken
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("homework: invalid endpoint %q: %w", endpoint, err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{endpoint: endpoint, token: token, http: hc, log: log}, nil
}

// Poll fetches the submissions updated since cursor (seconds since epoch).
//
// Failures are *Error values: KindTransport when no response arrived,
// KindMalformed when the body is not the expected JSON object and
// KindServerRefusal when the body carries a "code" or "error" key, whatever
// the HTTP status.
func (c *Client) Poll(ctx context.Context, cursor int64) (Batch, error) {
	if cursor < 0 {
		return Batch{}, ErrNegativeCursor
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q := url.Values{}
	q.Set("from_date", strconv.FormatInt(cursor, 10))
	diag := &Request{
		Method: http.MethodGet,
		URL:    c.endpoint,
		Query:  q,
		Header: http.Header{"Authorization": []string{redactedToken}},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return Batch{}, &Error{Kind: KindTransport, Request: diag, Err: err}
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	c.log.Debug("polling homework statuses", logx.Int64("from_date", cursor))

	resp, err := c.http.Do(req)
	if err != nil {
		return Batch{}, &Error{Kind: KindTransport, Request: diag, Err: c.scrub(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Batch{}, &Error{Kind: KindTransport, HTTPStatus: resp.StatusCode, Request: diag, Err: c.scrub(err)}
	}

	batch, err := parseEnvelope(body, cursor)
	if err != nil {
		if he, ok := err.(*Error); ok {
			he.HTTPStatus = resp.StatusCode
			he.Request = diag
		}
		return Batch{}, err
	}

	c.log.Debug("homework statuses received",
		logx.Int("http_status", resp.StatusCode),
		logx.Int("count", len(batch.Submissions)),
		logx.Int64("current_date", batch.Cursor),
	)
	return batch, nil
}

// scrub removes the raw token from err's text should a lower layer echo it.
func (c *Client) scrub(err error) error {
	if err == nil || !strings.Contains(err.Error(), c.token) {
		return err
	}
	return &scrubbedError{msg: strings.ReplaceAll(err.Error(), c.token, "***"), err: err}
}

// scrubbedError carries redacted text but keeps the chain for errors.Is.
type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

func parseEnvelope(body []byte, cursor int64) (Batch, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return Batch{}, &Error{Kind: KindMalformed, Reason: "body is not a JSON object: " + excerpt(body), Err: err}
	}
	if env == nil {
		return Batch{}, &Error{Kind: KindMalformed, Reason: "body is null"}
	}

	if reason, refused := refusalReason(env); refused {
		return Batch{}, &Error{Kind: KindServerRefusal, Reason: reason}
	}

	batch := Batch{Cursor: cursor}
	if raw, ok := env["homeworks"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &batch.Submissions); err != nil {
			return Batch{}, &Error{Kind: KindMalformed, Reason: "homeworks is not a list of submissions", Err: err}
		}
	}
	if raw, ok := env["current_date"]; ok && !isNull(raw) {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return Batch{}, &Error{Kind: KindMalformed, Reason: "current_date is not a number", Err: err}
		}
		v, err := n.Int64()
		if err != nil {
			return Batch{}, &Error{Kind: KindMalformed, Reason: "current_date is not an integer", Err: err}
		}
		batch.Cursor = v
	}
	return batch, nil
}

func refusalReason(env map[string]json.RawMessage) (string, bool) {
	refused := false
	parts := make([]string, 0, 3)
	for _, k := range errorKeys {
		raw, ok := env[k]
		if !ok {
			continue
		}
		refused = true
		if s := rawText(raw); s != "" {
			parts = append(parts, s)
		}
	}
	if !refused {
		return "", false
	}
	if raw, ok := env["message"]; ok {
		if s := rawText(raw); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "error envelope without details", true
	}
	return strings.Join(parts, ": "), true
}

// rawText returns a JSON string's value, or the compact JSON otherwise.
func rawText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty>"
	}
	r := []rune(s)
	if len(r) > maxBodyExcerpt {
		return string(r[:maxBodyExcerpt]) + "..."
	}
	return s
}
