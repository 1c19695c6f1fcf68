package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/hookecho/internal/entry"
	"github.com/mattjoyce/hookecho/internal/verify"
)

// Pagination bounds. per_page is clamped server-side regardless of the
// caller-supplied value to keep response sizes bounded.
const (
	uiDefaultPerPage  = 25
	uiMaxPerPage      = 200
	apiDefaultPerPage = 100
	apiMaxPerPage     = 1000
)

// handleIngest handles POST /webhook. Ingest never fails validation:
// malformed JSON degrades to text capture and still returns 200.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}

	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	e := entry.New(r.Method, r.URL.Path, r.Header, body, r.RemoteAddr)
	s.store.Insert(e)

	s.logger.Info("webhook received",
		"entry_id", e.ID,
		"client_ip", e.ClientIP,
		"bytes", len(body),
	)

	s.respondJSON(w, http.StatusOK, IngestResponse{Status: "ok", ID: e.ID})
}

// handleIndex handles GET /, the paginated HTML listing.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r, uiDefaultPerPage, uiMaxPerPage)

	entries := s.store.List((page-1)*perPage, perPage)
	total := s.store.Size()

	data := indexView{
		Entries:  entries,
		Page:     page,
		PerPage:  perPage,
		Total:    total,
		HasPrev:  page > 1,
		HasNext:  page*perPage < total,
		PrevPage: page - 1,
		NextPage: page + 1,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("failed to render index", "error", err)
	}
}

// handleDetail handles GET /webhooks/{entryID}, the HTML detail view.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	e, ok := s.store.Get(entryID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data := detailView{
		Entry:      e,
		PrettyBody: prettyBody(e),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "detail.html", data); err != nil {
		s.logger.Error("failed to render detail", "entry_id", e.ID, "error", err)
	}
}

// handleAPIList handles GET /api/webhooks.
func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r, apiDefaultPerPage, apiMaxPerPage)

	entries := s.store.List((page-1)*perPage, perPage)
	if entries == nil {
		entries = []entry.Entry{}
	}

	s.respondJSON(w, http.StatusOK, entries)
}

// handleAPIGet handles GET /api/webhooks/{entryID}.
func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	e, ok := s.store.Get(entryID)
	if !ok {
		s.respondError(w, http.StatusNotFound, "webhook not found")
		return
	}

	s.respondJSON(w, http.StatusOK, e)
}

// handleVerify handles POST /api/webhooks/{entryID}/verify. The delivery id,
// timestamp and signature come from the stored entry's captured headers; the
// secret comes from the caller. Verification always runs over RawBody, never
// a re-serialized view.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	e, ok := s.store.Get(entryID)
	if !ok {
		s.respondError(w, http.StatusNotFound, "webhook not found")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Secret == "" {
		s.respondError(w, http.StatusBadRequest, "missing secret")
		return
	}

	signature, ok := e.Header(s.config.Verify.SignatureHeader)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "missing signature header")
		return
	}
	deliveryID, ok := e.Header(s.config.Verify.IDHeader)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "missing delivery id header")
		return
	}
	timestamp, ok := e.Header(s.config.Verify.TimestampHeader)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "missing timestamp header")
		return
	}

	if !verify.Fresh(timestamp, s.config.Verify.Tolerance, time.Now()) {
		// Treated as a potential replay attempt.
		s.logger.Warn("webhook timestamp outside freshness window",
			"entry_id", e.ID,
			"timestamp", timestamp,
		)
		s.respondError(w, http.StatusBadRequest, "stale or malformed timestamp")
		return
	}

	if err := verify.Verify(e.RawBody, signature, req.Secret, deliveryID, timestamp); err != nil {
		// Never log the secret.
		s.logger.Warn("webhook signature verification failed",
			"entry_id", e.ID,
			"error", err,
		)
		s.respondError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	s.logger.Info("webhook signature verified", "entry_id", e.ID)
	s.respondJSON(w, http.StatusOK, VerifyResponse{Verified: true})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Received: s.store.Size(),
	})
}

// handleFavicon serves a tiny inline SVG so browsers don't 404.
func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(faviconSVG))
}

// pageParams reads 1-based page and per_page query params, clamping per_page
// to [1, max] and page to at least 1.
func pageParams(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 1 {
		page = v
	}

	perPage = defaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil {
		perPage = v
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	return page, perPage
}

// prettyBody renders an entry's body for the detail view: indented JSON when
// the body parsed, the raw text otherwise.
func prettyBody(e entry.Entry) string {
	if e.Body.Kind == entry.BodyJSON {
		if pretty, err := json.MarshalIndent(e.Body.JSON, "", "  "); err == nil {
			return string(pretty)
		}
	}
	return e.RawBody
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
