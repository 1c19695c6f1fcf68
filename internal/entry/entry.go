// Package entry defines the immutable record kept for each received webhook.
//
// Client IP derivation trusts the first element of X-Forwarded-For when the
// header is present. That value is client-controlled unless a trusted reverse
// proxy in front of the service sets it; operators terminating traffic
// directly should read client_ip accordingly.
package entry

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BodyKind discriminates the parsed view of a payload.
type BodyKind int

const (
	// BodyAbsent means no usable body view exists.
	BodyAbsent BodyKind = iota
	// BodyJSON means the raw payload parsed as JSON.
	BodyJSON
	// BodyText means the payload is kept as decoded text.
	BodyText
)

// Body is the best-effort parsed view of a payload. It is derived from the
// raw bytes and must never be used for signature verification; only RawBody
// is byte-accurate.
type Body struct {
	Kind BodyKind
	JSON any
	Text string
}

// MarshalJSON renders the tagged body as the parsed JSON value, a plain
// string, or null.
func (b Body) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BodyJSON:
		return json.Marshal(b.JSON)
	case BodyText:
		return json.Marshal(b.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON restores a tagged body from its rendered form. Strings come
// back as text, null as absent, anything else as a JSON value.
func (b *Body) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*b = Body{Kind: BodyAbsent}
	case string:
		*b = Body{Kind: BodyText, Text: t}
	default:
		*b = Body{Kind: BodyJSON, JSON: v}
	}
	return nil
}

// Entry is one captured webhook call. Entries are immutable once constructed;
// the history store hands out copies, never mutable references.
type Entry struct {
	ID         string            `json:"id"`
	ReceivedAt time.Time         `json:"received_at"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	ClientIP   string            `json:"client_ip"`
	UserAgent  string            `json:"user_agent"`
	Headers    map[string]string `json:"headers"`
	Body       Body              `json:"body"`
	RawBody    string            `json:"raw_body"`
}

// New builds an Entry from the parts of an inbound request. The raw payload
// is decoded as text with invalid UTF-8 sequences replaced; a JSON parse of
// the same bytes is attempted for the derived body view, falling back to the
// decoded text.
func New(method, path string, headers http.Header, raw []byte, remoteAddr string) Entry {
	captured := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			captured[name] = values[len(values)-1]
		}
	}

	body := Body{Kind: BodyText, Text: strings.ToValidUTF8(string(raw), "�")}
	var parsed any
	if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil {
		body = Body{Kind: BodyJSON, JSON: parsed}
	}

	return Entry{
		ID:         uuid.NewString(),
		ReceivedAt: time.Now().UTC(),
		Method:     method,
		Path:       path,
		ClientIP:   clientIP(headers.Get("X-Forwarded-For"), remoteAddr),
		UserAgent:  headers.Get("User-Agent"),
		Headers:    captured,
		Body:       body,
		RawBody:    strings.ToValidUTF8(string(raw), "�"),
	}
}

// Header returns the captured value for a header name, matched
// case-insensitively, and whether it was present.
func (e Entry) Header(name string) (string, bool) {
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// clientIP prefers the first X-Forwarded-For element, then the direct peer
// address, then "unknown".
func clientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}
	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
			return host
		}
		return remoteAddr
	}
	return "unknown"
}
