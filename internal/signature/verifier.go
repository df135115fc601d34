package signature

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Webhook authenticity checks. Two provider conventions are supported:
//
//   - HMAC: base64(HMAC-SHA1(full URL + form params sorted by key, token)),
//     the scheme Twilio uses for voice webhooks.
//   - Ed25519: detached signature over "{timestamp}|{rawBody}", the scheme
//     Telnyx uses, with a freshness window to defeat replay.
//
// All functions return false on missing inputs, malformed keys, or any
// cryptographic failure. Absence of a secret or key means "cannot verify"
// and the request is rejected; there is no trust-by-default path.
// Runs on every inbound webhook, so no allocations beyond the canonical
// string itself.

const DefaultTimestampTolerance = 5 * time.Minute

type Scheme string

const (
	SchemeHMAC    Scheme = "hmac"
	SchemeEd25519 Scheme = "ed25519"
)

// Verifier holds static key material from config. No per-request state.
type Verifier struct {
	Scheme             Scheme
	AuthToken          string
	PublicKey          ed25519.PublicKey
	TimestampTolerance time.Duration

	Now func() time.Time
}

// VerifyHMAC recomputes the provider MAC over the request URL plus all form
// parameters sorted by key and compares in constant time.
func (v Verifier) VerifyHMAC(requestURL string, form url.Values, signatureHeader string) bool {
	if v.AuthToken == "" || requestURL == "" || signatureHeader == "" {
		return false
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		for _, val := range form[k] {
			b.WriteString(k)
			b.WriteString(val)
		}
	}

	mac := hmac.New(sha1.New, []byte(v.AuthToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// VerifyEd25519 checks a detached signature over "{timestamp}|{rawBody}".
// Stale timestamps fail even when the signature itself is correct.
func (v Verifier) VerifyEd25519(rawBody []byte, signatureHeader, timestampHeader string) bool {
	if len(v.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	if signatureHeader == "" || timestampHeader == "" {
		return false
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestampHeader), 10, 64)
	if err != nil {
		return false
	}
	tolerance := v.TimestampTolerance
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	age := now().Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signatureHeader)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	signed := make([]byte, 0, len(timestampHeader)+1+len(rawBody))
	signed = append(signed, []byte(timestampHeader)...)
	signed = append(signed, '|')
	signed = append(signed, rawBody...)

	return ed25519.Verify(v.PublicKey, signed, sig)
}
