package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// slackTimestampTolerance bounds how old a signed request may be before it is
// rejected as a possible replay.
const slackTimestampTolerance = 5 * time.Minute

// VerifyHMAC verifies a sha256 HMAC hex signature against payload and secret
func VerifyHMAC(secret string, payload []byte, signatureHex string) bool {
	if secret == "" || signatureHex == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}

// VerifySlack checks a Slack request signature ("v0=<hex>") computed over
// "v0:<timestamp>:<body>", rejecting timestamps outside the replay tolerance.
func VerifySlack(signingSecret, timestamp string, body []byte, signature string) bool {
	if signingSecret == "" || timestamp == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if math.Abs(float64(time.Now().Unix()-ts)) > slackTimestampTolerance.Seconds() {
		return false
	}

	if !strings.HasPrefix(signature, "v0=") {
		return false
	}

	base := fmt.Sprintf("v0:%s:%s", timestamp, string(body))
	return VerifyHMAC(signingSecret, []byte(base), strings.TrimPrefix(signature, "v0="))
}

// VerifyGitLabToken compares the X-Gitlab-Token header value against the
// configured secret in constant time.
func VerifyGitLabToken(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1
}
