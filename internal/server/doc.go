// Package server implements the HTTP surface of the webhook receiver.
//
// Ingest (POST /webhook) never rejects a payload on content grounds: bodies
// that fail JSON parsing are captured as text and the endpoint still answers
// 200 with the new entry id. The only ingest failure is a body over the
// configured size limit (413).
//
// The browsable UI (GET /, GET /webhooks/{id}) and the JSON API
// (GET /api/webhooks, GET /api/webhooks/{id}) read from the same bounded
// history store, newest first, with server-side clamping of per_page.
//
// # Verification
//
// POST /api/webhooks/{id}/verify checks a stored entry against the v1
// payload-signature-timestamp scheme. The delivery id, timestamp and
// signature are read from the entry's captured headers; the shared secret is
// supplied by the caller and never logged.
//
// Error responses:
//
//   - 400 Bad Request: missing secret, missing scheme headers, or a stale or
//     malformed timestamp (potential replay)
//   - 401 Unauthorized: signature mismatch (no details)
//   - 404 Not Found: unknown entry id
package server
