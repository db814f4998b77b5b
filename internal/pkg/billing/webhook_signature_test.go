package billing

import (
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test"

func TestVerifyWebhookSignatureValid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()
	header := SignWebhookPayload(payload, testWebhookSecret, now)

	if !verifyWebhookSignatureAt(payload, header, testWebhookSecret, now, DefaultSignatureTolerance) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyWebhookSignatureWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := SignWebhookPayload(payload, "whsec_other", now)

	if verifyWebhookSignatureAt(payload, header, testWebhookSecret, now, DefaultSignatureTolerance) {
		t.Fatal("expected signature with wrong secret to fail")
	}
}

func TestVerifyWebhookSignatureTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := SignWebhookPayload(payload, testWebhookSecret, now)

	if verifyWebhookSignatureAt([]byte(`{"id":"evt_2"}`), header, testWebhookSecret, now, DefaultSignatureTolerance) {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestVerifyWebhookSignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signedAt := time.Now().Add(-time.Hour)
	header := SignWebhookPayload(payload, testWebhookSecret, signedAt)

	if verifyWebhookSignatureAt(payload, header, testWebhookSecret, time.Now(), DefaultSignatureTolerance) {
		t.Fatal("expected stale signature to fail verification")
	}
}

func TestVerifyWebhookSignatureGarbageHeader(t *testing.T) {
	payload := []byte(`{}`)
	for _, header := range []string{"", "t=abc,v1=00", "v1=deadbeef", "t=123"} {
		if verifyWebhookSignatureAt(payload, header, testWebhookSecret, time.Now(), 0) {
			t.Fatalf("expected header %q to fail verification", header)
		}
	}
}
