// Package verify implements the v1 payload-signature-timestamp webhook
// scheme: base64(HMAC-SHA256(secret, id + "." + timestamp + "." + payload))
// carried in a "v1,"-prefixed header, with a freshness window on the
// timestamp to bound replays.
//
// Verification must run over the raw payload text exactly as received.
// Re-serializing a parsed body breaks the signature for any payload whose
// canonical re-encoding differs byte-for-byte from what the sender signed.
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignaturePrefix is the required version prefix on signature headers.
const SignaturePrefix = "v1,"

// DefaultTolerance is the maximum accepted age of a signed timestamp.
const DefaultTolerance = 300 * time.Second

var (
	// ErrMalformedSignature indicates a header without the v1 prefix or with
	// an undecodable digest.
	ErrMalformedSignature = errors.New("malformed signature header")
	// ErrSignatureMismatch indicates the computed digest did not match the
	// claimed one. Deliberately generic; no digest material is leaked.
	ErrSignatureMismatch = errors.New("signature verification failed")
)

// Fresh reports whether timestampText is an integer Unix timestamp no older
// than tolerance and not in the future relative to now. Any parse failure is
// treated as stale.
func Fresh(timestampText string, tolerance time.Duration, now time.Time) bool {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestampText), 10, 64)
	if err != nil {
		return false
	}
	age := now.Unix() - ts
	return age >= 0 && age <= int64(tolerance.Seconds())
}

// Verify checks the claimed signature over the raw payload. The signed
// content is reconstructed as deliveryID + "." + timestampText + "." +
// rawPayload and compared in constant time (crypto/subtle) to prevent timing
// side-channels. Freshness is the caller's concern; see Fresh.
func Verify(rawPayload, signature, secret, deliveryID, timestampText string) error {
	if !strings.HasPrefix(signature, SignaturePrefix) {
		return ErrMalformedSignature
	}

	claimed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(signature, SignaturePrefix))
	if err != nil {
		return ErrMalformedSignature
	}

	if secret == "" {
		return ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedContent(deliveryID, timestampText, rawPayload)))
	expected := mac.Sum(nil)

	if subtle.ConstantTimeCompare(expected, claimed) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign computes a valid v1 signature for the given inputs. The verifying and
// signing halves live together so tests exercise the same reconstruction.
func Sign(rawPayload, secret, deliveryID, timestampText string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedContent(deliveryID, timestampText, rawPayload)))
	return SignaturePrefix + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signedContent joins the signed parts with dots and nothing else.
func signedContent(deliveryID, timestampText, rawPayload string) string {
	return deliveryID + "." + timestampText + "." + rawPayload
}
