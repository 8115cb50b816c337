package homework

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logx "hwbot/pkg/logx"
)

const testToken = "y0_secret-token-value"

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(Config{Endpoint: endpoint, Token: testToken, Timeout: 2 * time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollSendsAuthAndCursor(t *testing.T) {
	var gotAuth, gotFrom, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotFrom = r.URL.Query().Get("from_date")
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"hw1","status":"approved"},{"homework_name":"hw0","status":"rejected"}],"current_date":1000}`))
	}))
	t.Cleanup(srv.Close)

	batch, err := newTestClient(t, srv.URL).Poll(context.Background(), 42)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Fatalf("method = %s", gotMethod)
	}
	if gotAuth != "OAuth "+testToken {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotFrom != "42" {
		t.Fatalf("from_date = %q", gotFrom)
	}
	if batch.Cursor != 1000 {
		t.Fatalf("cursor = %d, want 1000", batch.Cursor)
	}
	if len(batch.Submissions) != 2 {
		t.Fatalf("submissions = %d, want 2", len(batch.Submissions))
	}
	latest, ok := batch.Latest()
	if !ok || latest.Name != "hw1" || latest.Status != StatusApproved {
		t.Fatalf("latest = %+v (ok=%v)", latest, ok)
	}
}

func TestPollMissingCurrentDateKeepsCursor(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"homeworks":[]}`)

	batch, err := newTestClient(t, srv.URL).Poll(context.Background(), 777)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if batch.Cursor != 777 {
		t.Fatalf("cursor = %d, want 777", batch.Cursor)
	}
	if len(batch.Submissions) != 0 {
		t.Fatalf("expected no submissions, got %d", len(batch.Submissions))
	}
	if _, ok := batch.Latest(); ok {
		t.Fatal("Latest on empty batch should report false")
	}
}

func TestPollServerRefusalRegardlessOfStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason string
	}{
		{name: "error key 200", status: http.StatusOK, body: `{"error":"bad token"}`, reason: "bad token"},
		{name: "error key 500", status: http.StatusInternalServerError, body: `{"error":"bad token"}`, reason: "bad token"},
		{name: "code key 401", status: http.StatusUnauthorized, body: `{"code":"not_authenticated","message":"Учетные данные не были предоставлены."}`, reason: "not_authenticated: Учетные данные не были предоставлены."},
		{name: "code key with data", status: http.StatusOK, body: `{"code":"UnknownError","homeworks":[],"current_date":5}`, reason: "UnknownError"},
		{name: "error object", status: http.StatusBadRequest, body: `{"error":{"error":"Wrong from_date format"}}`, reason: `{"error":"Wrong from_date format"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, tt.status, tt.body)
			batch, err := newTestClient(t, srv.URL).Poll(context.Background(), 10)
			var he *Error
			if !errors.As(err, &he) || he.Kind != KindServerRefusal {
				t.Fatalf("err = %v, want KindServerRefusal", err)
			}
			if he.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", he.Reason, tt.reason)
			}
			if he.HTTPStatus != tt.status {
				t.Fatalf("http status = %d, want %d", he.HTTPStatus, tt.status)
			}
			if he.Request == nil || he.Request.Query.Get("from_date") != "10" {
				t.Fatalf("request context missing: %+v", he.Request)
			}
			if len(batch.Submissions) != 0 || batch.Cursor != 0 {
				t.Fatalf("batch should be empty on refusal: %+v", batch)
			}
		})
	}
}

func TestPollMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "html", body: `<html>502 Bad Gateway</html>`},
		{name: "empty", body: ``},
		{name: "array", body: `[1,2,3]`},
		{name: "null", body: `null`},
		{name: "homeworks object", body: `{"homeworks":{"homework_name":"hw1"}}`},
		{name: "current_date string", body: `{"homeworks":[],"current_date":"yesterday"}`},
		{name: "current_date float", body: `{"homeworks":[],"current_date":12.5}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, http.StatusOK, tt.body)
			_, err := newTestClient(t, srv.URL).Poll(context.Background(), 1)
			if !IsKind(err, KindMalformed) {
				t.Fatalf("err = %v, want KindMalformed", err)
			}
		})
	}
}

func TestPollTransportError(t *testing.T) {
	// Reserve a port, then close it so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	batch, err := newTestClient(t, "http://"+addr+"/api/").Poll(context.Background(), 99)
	var he *Error
	if !errors.As(err, &he) || he.Kind != KindTransport {
		t.Fatalf("err = %v, want KindTransport", err)
	}
	if he.Err == nil {
		t.Fatal("transport error should wrap the cause")
	}
	if len(batch.Submissions) != 0 {
		t.Fatal("no submissions expected on transport failure")
	}
	if he.Request == nil || he.Request.Query.Get("from_date") != "99" {
		t.Fatalf("request context missing: %+v", he.Request)
	}
	msg := err.Error()
	if strings.Contains(msg, testToken) {
		t.Fatalf("token leaked into error: %q", msg)
	}
	if !strings.Contains(msg, "Authorization: OAuth ***") {
		t.Fatalf("redacted header shape missing from error: %q", msg)
	}
}

func TestPollTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c, err := NewClient(Config{Endpoint: srv.URL, Token: testToken, Timeout: 50 * time.Millisecond}, logx.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Poll(context.Background(), 1)
	if !IsKind(err, KindTransport) {
		t.Fatalf("err = %v, want KindTransport", err)
	}
}

func TestPollRejectsNegativeCursor(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, "http://127.0.0.1:1/")
	if _, err := c.Poll(context.Background(), -1); !errors.Is(err, ErrNegativeCursor) {
		t.Fatalf("err = %v, want ErrNegativeCursor", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(Config{Token: "  "}, logx.Nop()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
	if _, err := NewClient(Config{Token: "x", Endpoint: "not a url"}, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	c, err := NewClient(Config{Token: "x"}, logx.Logger{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.endpoint != DefaultEndpoint {
		t.Fatalf("endpoint = %q, want default", c.endpoint)
	}
	if c.http.Timeout != DefaultTimeout {
		t.Fatalf("timeout = %v, want %v", c.http.Timeout, DefaultTimeout)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestPollRedactedErrorKeepsChain(t *testing.T) {
	t.Parallel()
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("proxy echoed %s: %w", r.Header.Get("Authorization"), context.DeadlineExceeded)
	})
	c, err := NewClient(Config{Endpoint: "http://homework.invalid/api", Token: testToken, HTTPClient: &http.Client{Transport: rt}}, logx.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Poll(context.Background(), 1)
	if KindOf(err) != KindTransport {
		t.Fatalf("kind = %v, err = %v", KindOf(err), err)
	}
	if strings.Contains(err.Error(), testToken) {
		t.Fatalf("token leaked: %q", err.Error())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("redaction broke the error chain: %v", err)
	}
}
