package signature

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func signHMAC(token, requestURL string, form url.Values) string {
	// Mirror the provider side: URL + params sorted by key.
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	// small fixed set in tests; insertion order happens to be sorted below
	canonical := requestURL
	sortStrings(keys)
	for _, k := range keys {
		for _, v := range form[k] {
			canonical += k + v
		}
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func TestVerifyHMAC_RoundTrip(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "+12065550123")
	form.Set("To", "+14255550100")
	reqURL := "https://core.example.com/webhooks/voice"

	v := Verifier{Scheme: SchemeHMAC, AuthToken: "tok_secret"}
	sig := signHMAC("tok_secret", reqURL, form)

	if !v.VerifyHMAC(reqURL, form, sig) {
		t.Fatalf("expected valid signature to verify")
	}
}

func TestVerifyHMAC_TamperedParamFails(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("To", "+14255550100")
	reqURL := "https://core.example.com/webhooks/voice"

	v := Verifier{Scheme: SchemeHMAC, AuthToken: "tok_secret"}
	sig := signHMAC("tok_secret", reqURL, form)

	form.Set("To", "+14255550101") // one digit off
	if v.VerifyHMAC(reqURL, form, sig) {
		t.Fatalf("tampered param must not verify")
	}
}

func TestVerifyHMAC_FailsClosed(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	v := Verifier{Scheme: SchemeHMAC}
	if v.VerifyHMAC("https://x", form, "sig") {
		t.Fatalf("missing auth token must reject")
	}
	v = Verifier{Scheme: SchemeHMAC, AuthToken: "tok"}
	if v.VerifyHMAC("https://x", form, "") {
		t.Fatalf("missing signature header must reject")
	}
}

func ed25519Fixture(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	return pub, priv
}

func signEd25519(priv ed25519.PrivateKey, ts string, body []byte) string {
	signed := append([]byte(ts+"|"), body...)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, signed))
}

func TestVerifyEd25519_RoundTrip(t *testing.T) {
	pub, priv := ed25519Fixture(t)
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"call":{"call_id":"pc1","to":"+14255550100","from":"+1206"}}`)

	v := Verifier{Scheme: SchemeEd25519, PublicKey: pub, Now: func() time.Time { return now }}
	if !v.VerifyEd25519(body, signEd25519(priv, ts, body), ts) {
		t.Fatalf("expected valid signature to verify")
	}
}

func TestVerifyEd25519_SingleByteTamperFails(t *testing.T) {
	pub, priv := ed25519Fixture(t)
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"call_id":"pc1","to":"+14255550100","from":"+12065550123"}`)
	sig := signEd25519(priv, ts, body)

	v := Verifier{Scheme: SchemeEd25519, PublicKey: pub, Now: func() time.Time { return now }}
	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		if v.VerifyEd25519(tampered, sig, ts) {
			t.Fatalf("byte %d tampered but signature verified", i)
		}
	}
}

func TestVerifyEd25519_StaleTimestampFails(t *testing.T) {
	pub, priv := ed25519Fixture(t)
	now := time.Unix(1700000000, 0)
	stale := now.Add(-DefaultTimestampTolerance - time.Second)
	ts := strconv.FormatInt(stale.Unix(), 10)
	body := []byte(`{}`)

	v := Verifier{Scheme: SchemeEd25519, PublicKey: pub, Now: func() time.Time { return now }}
	// Correct signature, old timestamp.
	if v.VerifyEd25519(body, signEd25519(priv, ts, body), ts) {
		t.Fatalf("stale timestamp must reject even with a correct signature")
	}
}

func TestVerifyEd25519_MalformedInputsFailClosed(t *testing.T) {
	pub, _ := ed25519Fixture(t)
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	v := Verifier{Scheme: SchemeEd25519, PublicKey: pub, Now: func() time.Time { return now }}

	if v.VerifyEd25519([]byte(`{}`), "not-base64!!", ts) {
		t.Fatalf("malformed signature must reject")
	}
	if v.VerifyEd25519([]byte(`{}`), signEd25519Garbage(), "not-a-number") {
		t.Fatalf("malformed timestamp must reject")
	}
	v.PublicKey = nil
	if v.VerifyEd25519([]byte(`{}`), signEd25519Garbage(), ts) {
		t.Fatalf("missing public key must reject")
	}
}

func signEd25519Garbage() string {
	return base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))
}
