package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/hookecho/internal/entry"
	"github.com/mattjoyce/hookecho/internal/history"
	"github.com/mattjoyce/hookecho/internal/verify"
)

func newTestServer(capacity int) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{Listen: "127.0.0.1:0"}, history.New(capacity), logger)
}

func ingest(t *testing.T, router http.Handler, body []byte, headers map[string]string) string {
	t.Helper()

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp IngestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode ingest response: %v", err)
	}
	if resp.Status != "ok" || resp.ID == "" {
		t.Fatalf("ingest response = %+v, want status ok with id", resp)
	}
	return resp.ID
}

func TestIngestAndAPIGet_JSONRoundTrip(t *testing.T) {
	s := newTestServer(10)
	router := s.setupRoutes()

	id := ingest(t, router, []byte(`{"a": 1}`), map[string]string{"Content-Type": "application/json"})

	req := httptest.NewRequest("GET", "/api/webhooks/"+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got entry.Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode entry: %v", err)
	}

	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if got.Body.Kind != entry.BodyJSON {
		t.Errorf("Body.Kind = %v, want BodyJSON", got.Body.Kind)
	}
	// raw_body keeps the exact bytes sent, whitespace included
	if got.RawBody != `{"a": 1}` {
		t.Errorf("RawBody = %q, want %q", got.RawBody, `{"a": 1}`)
	}
	if got.Method != "POST" || got.Path != "/webhook" {
		t.Errorf("Method/Path = %q %q", got.Method, got.Path)
	}
}

func TestIngest_MalformedJSONDegradesToText(t *testing.T) {
	s := newTestServer(10)
	router := s.setupRoutes()

	id := ingest(t, router, []byte("definitely {not json"), nil)

	req := httptest.NewRequest("GET", "/api/webhooks/"+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var got entry.Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode entry: %v", err)
	}
	if got.Body.Kind != entry.BodyText {
		t.Errorf("Body.Kind = %v, want BodyText", got.Body.Kind)
	}
	if got.Body.Text != "definitely {not json" {
		t.Errorf("Body.Text = %q", got.Body.Text)
	}
}

func TestIngest_BodyTooLarge(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := New(Config{Listen: "127.0.0.1:0", MaxBodySize: 64}, history.New(10), logger)
	router := s.setupRoutes()

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(bytes.Repeat([]byte("a"), 128)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestAPIList_NewestFirstAndPagination(t *testing.T) {
	s := newTestServer(100)
	router := s.setupRoutes()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, ingest(t, router, []byte(fmt.Sprintf(`{"n":%d}`, i)), nil))
	}

	req := httptest.NewRequest("GET", "/api/webhooks?page=1&per_page=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var got []entry.Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != ids[4] || got[1].ID != ids[3] {
		t.Errorf("order = %q %q, want newest first", got[0].ID, got[1].ID)
	}

	// page past the end is an empty array, not an error
	req = httptest.NewRequest("GET", "/api/webhooks?page=100&per_page=100", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := strings.TrimSpace(rec.Body.String())
	if body != "[]" {
		t.Errorf("body = %q, want empty array", body)
	}
}

func TestPageParams_Clamping(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{name: "defaults", query: "", wantPage: 1, wantPerPage: apiDefaultPerPage},
		{name: "explicit", query: "?page=3&per_page=10", wantPage: 3, wantPerPage: 10},
		{name: "per_page above max clamps", query: "?per_page=99999", wantPage: 1, wantPerPage: apiMaxPerPage},
		{name: "per_page below one clamps", query: "?per_page=0", wantPage: 1, wantPerPage: 1},
		{name: "negative per_page clamps", query: "?per_page=-5", wantPage: 1, wantPerPage: 1},
		{name: "page below one clamps", query: "?page=-2", wantPage: 1, wantPerPage: apiDefaultPerPage},
		{name: "garbage ignored", query: "?page=x&per_page=y", wantPage: 1, wantPerPage: apiDefaultPerPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/webhooks"+tt.query, nil)
			page, perPage := pageParams(req, apiDefaultPerPage, apiMaxPerPage)
			if page != tt.wantPage || perPage != tt.wantPerPage {
				t.Errorf("pageParams() = %d, %d, want %d, %d", page, perPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestAPIGet_NotFound(t *testing.T) {
	s := newTestServer(10)
	router := s.setupRoutes()

	req := httptest.NewRequest("GET", "/api/webhooks/unknown-id", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "webhook not found" {
		t.Errorf("Error = %q", resp.Error)
	}
}

func TestIndexAndDetail_HTML(t *testing.T) {
	s := newTestServer(10)
	router := s.setupRoutes()

	id := ingest(t, router, []byte(`{"event":"test"}`), map[string]string{"User-Agent": "go-test"})

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("index Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), id) {
		t.Error("index should link to the received entry")
	}

	req = httptest.NewRequest("GET", "/webhooks/"+id, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("detail status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "&#34;event&#34;") {
		t.Error("detail should render the pretty body")
	}

	req = httptest.NewRequest("GET", "/webhooks/unknown-id", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown detail status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(10)
	router := s.setupRoutes()

	ingest(t, router, []byte(`{}`), nil)
	ingest(t, router, []byte(`{}`), nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Received != 2 {
		t.Errorf("health = %+v", resp)
	}
}

func TestFavicon(t *testing.T) {
	s := newTestServer(10)
	router := s.setupRoutes()

	req := httptest.NewRequest("GET", "/favicon.ico", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("favicon should be inline SVG")
	}
}

func verifyRequest(id, secret string) *http.Request {
	body := fmt.Sprintf(`{"secret":%q}`, secret)
	return httptest.NewRequest("POST", "/api/webhooks/"+id+"/verify", strings.NewReader(body))
}

func TestVerifyEndpoint(t *testing.T) {
	const secret = "test-secret"
	payload := `{"event":"signed"}`
	deliveryID := "msg_001"

	freshTS := strconv.FormatInt(time.Now().Unix(), 10)
	staleTS := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	futureTS := strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)

	signedHeaders := func(ts string) map[string]string {
		return map[string]string{
			"Webhook-Id":        deliveryID,
			"Webhook-Timestamp": ts,
			"Webhook-Signature": verify.Sign(payload, secret, deliveryID, ts),
		}
	}

	tests := []struct {
		name       string
		headers    map[string]string
		secret     string
		wantStatus int
	}{
		{
			name:       "valid signature",
			headers:    signedHeaders(freshTS),
			secret:     secret,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong secret",
			headers:    signedHeaders(freshTS),
			secret:     "wrong-secret",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing secret",
			headers:    signedHeaders(freshTS),
			secret:     "",
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing signature header",
			headers: map[string]string{
				"Webhook-Id":        deliveryID,
				"Webhook-Timestamp": freshTS,
			},
			secret:     secret,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing delivery id header",
			headers: map[string]string{
				"Webhook-Timestamp": freshTS,
				"Webhook-Signature": verify.Sign(payload, secret, deliveryID, freshTS),
			},
			secret:     secret,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "stale timestamp",
			headers:    signedHeaders(staleTS),
			secret:     secret,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "future timestamp",
			headers:    signedHeaders(futureTS),
			secret:     secret,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "tampered signature",
			headers: map[string]string{
				"Webhook-Id":        deliveryID,
				"Webhook-Timestamp": freshTS,
				"Webhook-Signature": "v1,AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
			},
			secret:     secret,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(10)
			router := s.setupRoutes()

			id := ingest(t, router, []byte(payload), tt.headers)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, verifyRequest(id, tt.secret))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp VerifyResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if !resp.Verified {
					t.Error("Verified = false, want true")
				}
			}
		})
	}
}

func TestVerifyEndpoint_UnknownID(t *testing.T) {
	s := newTestServer(10)
	router := s.setupRoutes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, verifyRequest("unknown-id", "s"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
