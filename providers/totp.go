package providers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	totpPeriod = 30 * time.Second
	totpDigits = 6
)

// GenerateTOTP produces the RFC 6238 six digit code for a base32 seed at
// the given instant. Seeds may be raw base32 or a full otpauth:// URI.
func GenerateTOTP(seed string, at time.Time) (string, error) {
	secret, err := normalizeBase32Secret(seed)
	if err != nil {
		return "", err
	}
	key, err := base32.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("providers: totp seed is not valid base32: %w", err)
	}

	counter := uint64(at.Unix()) / uint64(totpPeriod/time.Second)
	var message [8]byte
	binary.BigEndian.PutUint64(message[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(message[:])
	digest := mac.Sum(nil)

	offset := digest[len(digest)-1] & 0x0f
	code := binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff

	modulo := uint32(1)
	for i := 0; i < totpDigits; i++ {
		modulo *= 10
	}
	return fmt.Sprintf("%0*d", totpDigits, code%modulo), nil
}

// normalizeBase32Secret uppercases, strips separators, pads to a multiple
// of eight, and unwraps otpauth:// URIs down to their secret parameter.
func normalizeBase32Secret(seed string) (string, error) {
	secret := strings.TrimSpace(seed)
	if secret == "" {
		return "", fmt.Errorf("providers: totp seed is required")
	}

	if strings.HasPrefix(strings.ToLower(secret), "otpauth://") {
		parsed, err := url.Parse(secret)
		if err != nil {
			return "", fmt.Errorf("providers: parse otpauth uri: %w", err)
		}
		secret = parsed.Query().Get("secret")
		if strings.TrimSpace(secret) == "" {
			return "", fmt.Errorf("providers: otpauth uri carries no secret")
		}
	}

	secret = strings.ToUpper(secret)
	secret = strings.ReplaceAll(secret, " ", "")
	secret = strings.ReplaceAll(secret, "-", "")
	if padding := len(secret) % 8; padding != 0 {
		secret += strings.Repeat("=", 8-padding)
	}
	return secret, nil
}
