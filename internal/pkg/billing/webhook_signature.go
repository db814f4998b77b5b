package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how stale a signed webhook timestamp may
// be before the payload is rejected as a possible replay.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks a `t=<unix>,v1=<hex>` signature header
// against the raw payload. The signed message is "<t>.<payload>" with
// HMAC-SHA256 over the webhook secret.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	return verifyWebhookSignatureAt(payload, signatureHeader, webhookSecret, time.Now(), DefaultSignatureTolerance)
}

func verifyWebhookSignatureAt(payload []byte, signatureHeader, webhookSecret string, now time.Time, tolerance time.Duration) bool {
	secret := strings.TrimSpace(webhookSecret)
	header := strings.TrimSpace(signatureHeader)
	if secret == "" || header == "" {
		return false
	}

	var timestamp int64 = -1
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(kv[1]))
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}
	if timestamp < 0 || len(candidates) == 0 {
		return false
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return false
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		if hmac.Equal(expected, candidate) {
			return true
		}
	}
	return false
}

// SignWebhookPayload produces a signature header for a payload. Used by the
// test suite and local development tooling to fabricate valid deliveries.
func SignWebhookPayload(payload []byte, webhookSecret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
