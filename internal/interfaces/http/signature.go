package http

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// webhookFreshness bounds the accepted age of a signed generic webhook.
const webhookFreshness = 5 * time.Minute

// VerifyTwilioSignature checks the X-Twilio-Signature header: base64
// HMAC-SHA1 of the full request URL with every POST parameter appended in
// sorted key order, keyed by the account auth token. An empty token disables
// verification (local development only).
func VerifyTwilioSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if authToken == "" {
		return true
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := fullURL
	for _, k := range keys {
		for _, v := range params[k] {
			payload += k + v
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the generic webhook scheme: hex HMAC-SHA256
// of "{timestamp}.{rawBody}" with a shared secret, rejected outside the
// freshness window in either direction. An empty secret disables
// verification.
func VerifyWebhookSignature(secret, timestamp string, body []byte, signature string, now time.Time) bool {
	if secret == "" {
		return true
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	sent := time.Unix(ts, 0)
	age := now.Sub(sent)
	if age > webhookFreshness || age < -webhookFreshness {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
