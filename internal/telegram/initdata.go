package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ErrBotTokenMissing indicates a server misconfiguration, not a failed
// verification. Callers must surface it distinctly (500, not 401).
var ErrBotTokenMissing = errors.New("telegram bot token is not configured")

// webAppDataKey is the fixed domain-separation constant Telegram uses to
// derive the per-bot secret for WebApp init data.
const webAppDataKey = "WebAppData"

// Reason explains why verification failed.
type Reason string

const (
	ReasonMissingHash       Reason = "missing-hash"
	ReasonSignatureMismatch Reason = "signature-mismatch"
)

// VerificationResult is the outcome of a single init data check.
// Fields is only populated when Valid is true.
type VerificationResult struct {
	Valid  bool
	Reason Reason
	Fields map[string]string
}

// ParseInitData decodes the URL-query-encoded init data string into a flat
// field map. Repeated keys keep the first value.
func ParseInitData(initData string) (map[string]string, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// Canonicalize builds the data-check string: every field except "hash",
// sorted by key, joined as "key=value" lines with no trailing newline.
// Identical field sets always yield an identical string.
func Canonicalize(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// Sign computes the lowercase hex signature of a field set under the given
// bot token, using the derived-key HMAC chain Telegram specifies.
func Sign(fields map[string]string, botToken string) string {
	derived := hmac.New(sha256.New, []byte(webAppDataKey))
	derived.Write([]byte(botToken))
	secret := derived.Sum(nil)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(Canonicalize(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the "hash" field of the given fields against the signature
// recomputed from the bot token. The comparison is constant-time.
func Verify(fields map[string]string, botToken string) (VerificationResult, error) {
	if botToken == "" {
		return VerificationResult{}, ErrBotTokenMissing
	}

	supplied, ok := fields["hash"]
	if !ok || supplied == "" {
		return VerificationResult{Reason: ReasonMissingHash}, nil
	}

	computed := Sign(fields, botToken)
	if !hmac.Equal([]byte(computed), []byte(supplied)) {
		return VerificationResult{Reason: ReasonSignatureMismatch}, nil
	}

	verified := make(map[string]string, len(fields)-1)
	for k, v := range fields {
		if k != "hash" {
			verified[k] = v
		}
	}
	return VerificationResult{Valid: true, Fields: verified}, nil
}

// VerifyInitData parses and verifies a raw init data string in one step.
func VerifyInitData(initData, botToken string) (VerificationResult, error) {
	fields, err := ParseInitData(initData)
	if err != nil {
		return VerificationResult{}, err
	}
	return Verify(fields, botToken)
}
