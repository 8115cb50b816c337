package homework

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrNegativeCursor = errors.New("homework: cursor must be >= 0")
	ErrNoToken        = errors.New("homework: api token is empty")
)

// Kind classifies a failure in the poll-translate-notify cycle.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport: the request never produced a response (DNS, timeout, refused).
	KindTransport
	// KindServerRefusal: the API answered with an error envelope (code/error keys).
	KindServerRefusal
	// KindMalformed: the response body is not the expected JSON.
	KindMalformed
	// KindUnexpectedStatus: a submission carries a status we have no message for.
	KindUnexpectedStatus
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServerRefusal:
		return "server_refusal"
	case KindMalformed:
		return "malformed_response"
	case KindUnexpectedStatus:
		return "unexpected_status"
	default:
		return "unknown"
	}
}

// Request describes an outgoing API call for diagnostics.
// Header values are already redacted.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
}

func (r Request) String() string {
	u := r.URL
	if q := r.Query.Encode(); q != "" {
		u += "?" + q
	}
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteString(" ")
	b.WriteString(u)
	if len(r.Header) > 0 {
		keys := make([]string, 0, len(r.Header))
		for k := range r.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(strings.Join(r.Header.Values(k), ","))
		}
		b.WriteString("]")
	}
	return b.String()
}

// Error is the tagged error returned by Client.Poll and Translate.
type Error struct {
	Kind Kind

	// Reason is the server-provided refusal reason or a short description
	// of what was malformed.
	Reason     string
	HTTPStatus int
	Request    *Request

	// Set for KindUnexpectedStatus.
	Name   string
	Status Status

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("homework: ")
	switch e.Kind {
	case KindTransport:
		b.WriteString("transport error")
	case KindServerRefusal:
		b.WriteString("server refused request")
	case KindMalformed:
		b.WriteString("malformed response")
	case KindUnexpectedStatus:
		return fmt.Sprintf("homework: unexpected status %q for %q", string(e.Status), e.Name)
	default:
		b.WriteString(e.Kind.String())
	}
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, " (http %d)", e.HTTPStatus)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Request != nil {
		b.WriteString(" [")
		b.WriteString(e.Request.String())
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
