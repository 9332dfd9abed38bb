package security

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Fingerprint returns the lowercase hex MD5 of text. The remote API expects
// phone numbers and passwords in this encoding; it is not a security control.
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IsFingerprint reports whether value already looks like a Fingerprint result.
func IsFingerprint(value string) bool {
	if len(value) != md5.Size*2 {
		return false
	}
	for _, c := range strings.ToLower(value) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// EnsureFingerprint fingerprints value unless it is one already.
func EnsureFingerprint(value string) string {
	if value == "" || IsFingerprint(value) {
		return strings.ToLower(value)
	}
	return Fingerprint(value)
}
