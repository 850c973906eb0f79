package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func slackSign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, string(body))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySlack(t *testing.T) {
	secret := "slack-signing-secret"
	body := []byte(`{"type":"event_callback"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	if !VerifySlack(secret, ts, body, slackSign(secret, ts, body)) {
		t.Error("valid signature rejected")
	}
	if VerifySlack(secret, ts, body, slackSign("wrong-secret", ts, body)) {
		t.Error("signature from wrong secret accepted")
	}
	if VerifySlack(secret, ts, []byte("tampered"), slackSign(secret, ts, body)) {
		t.Error("signature over different body accepted")
	}
}

func TestVerifySlackStaleTimestamp(t *testing.T) {
	secret := "slack-signing-secret"
	body := []byte(`{}`)
	stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)

	if VerifySlack(secret, stale, body, slackSign(secret, stale, body)) {
		t.Error("stale timestamp accepted")
	}
}

func TestVerifySlackMissingPrefix(t *testing.T) {
	secret := "slack-signing-secret"
	body := []byte(`{}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	sig := slackSign(secret, ts, body)[3:]
	if VerifySlack(secret, ts, body, sig) {
		t.Error("signature without v0= prefix accepted")
	}
}

func TestVerifyGitLabToken(t *testing.T) {
	if !VerifyGitLabToken("s3cret", "s3cret") {
		t.Error("matching token rejected")
	}
	if VerifyGitLabToken("s3cret", "other") {
		t.Error("mismatched token accepted")
	}
	if VerifyGitLabToken("", "") {
		t.Error("empty secret accepted")
	}
}

func TestVerifyHMAC(t *testing.T) {
	payload := []byte("payload")
	mac := hmac.New(sha256.New, []byte("k"))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !VerifyHMAC("k", payload, sig) {
		t.Error("valid hmac rejected")
	}
	if VerifyHMAC("k2", payload, sig) {
		t.Error("hmac with wrong key accepted")
	}
}
