package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the request header carrying the webhook signature.
const SignatureHeader = "Paddle-Signature"

// Signature-verification failures fall into two classes: invalid input
// (missing or unparsable material, a configuration problem) and a plain
// mismatch (a forged or corrupted request). Callers map the first class to
// 400 and the second to 401.
var (
	ErrMissingSecret      = errors.New("webhook secret is not configured")
	ErrMissingSignature   = errors.New("signature header is missing")
	ErrMalformedSignature = errors.New("signature header is malformed")
	ErrSignatureExpired   = errors.New("signature timestamp is too old")
	ErrSignatureMismatch  = errors.New("signature does not match payload")
)

// IsInvalidInput reports whether err indicates missing/malformed signature
// material rather than a failed comparison.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrMissingSecret) ||
		errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrMalformedSignature)
}

// VerifyWebhookSignature checks a Paddle-Signature header ("ts=<unix>;h1=<hex>")
// against the exact raw request body. The digest is HMAC-SHA256 over
// "<ts>:<body>" with the shared secret, compared in constant time. maxAge
// bounds the accepted timestamp skew; zero disables the check.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string, maxAge time.Duration) error {
	return verifyWebhookSignatureAt(payload, signatureHeader, webhookSecret, maxAge, time.Now())
}

func verifyWebhookSignatureAt(payload []byte, signatureHeader, webhookSecret string, maxAge time.Duration, now time.Time) error {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return ErrMissingSecret
	}
	header := strings.TrimSpace(signatureHeader)
	if header == "" {
		return ErrMissingSignature
	}

	ts, digests, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if maxAge > 0 {
		issued := time.Unix(ts, 0)
		if issued.Before(now.Add(-maxAge)) {
			return ErrSignatureExpired
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte(":"))
	mac.Write(payload)
	expected := mac.Sum(nil)

	// Paddle may send multiple h1 values during secret rotation.
	for _, d := range digests {
		if hmac.Equal(expected, d) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var ts int64
	tsSeen := false
	var digests [][]byte

	for _, part := range strings.Split(header, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, ErrMalformedSignature
		}
		switch key {
		case "ts":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			ts = parsed
			tsSeen = true
		case "h1":
			decoded, err := hex.DecodeString(strings.ToLower(value))
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			digests = append(digests, decoded)
		}
	}

	if !tsSeen || len(digests) == 0 {
		return 0, nil, ErrMalformedSignature
	}
	return ts, digests, nil
}
