package server

import "github.com/mattjoyce/hookecho/internal/entry"

// IngestResponse is the JSON response for POST /webhook.
type IngestResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// VerifyRequest is the JSON body for POST /api/webhooks/{id}/verify.
type VerifyRequest struct {
	Secret string `json:"secret"`
}

// VerifyResponse is the JSON response for a successful verification.
type VerifyResponse struct {
	Verified bool `json:"verified"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Received int    `json:"received"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// indexView is the template data for the listing page.
type indexView struct {
	Entries  []entry.Entry
	Page     int
	PerPage  int
	Total    int
	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
}

// detailView is the template data for the detail page.
type detailView struct {
	Entry      entry.Entry
	PrettyBody string
}

// faviconSVG is served inline for GET /favicon.ico.
const faviconSVG = `<?xml version="1.0" encoding="utf-8"?>` +
	`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 64">` +
	`<rect width="64" height="64" fill="#0d6efd"/>` +
	`<text x="50%" y="50%" font-size="36" text-anchor="middle" fill="#ffffff" dy=".35em">E</text>` +
	`</svg>`
