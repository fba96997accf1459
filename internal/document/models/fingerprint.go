package models

import (
	"crypto/sha256"
	"encoding/hex"

	dErrors "docucred/pkg/domain-errors"
)

// Fingerprint is the lowercase hex SHA-256 of a document's raw bytes.
type Fingerprint string

const fingerprintLength = sha256.Size * 2

// ComputeFingerprint is a pure function of the bytes.
func ComputeFingerprint(document []byte) Fingerprint {
	sum := sha256.Sum256(document)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// ParseFingerprint accepts exactly 64 lowercase hex characters.
func ParseFingerprint(s string) (Fingerprint, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "imageHash is required")
	}
	if len(s) != fingerprintLength {
		return "", dErrors.New(dErrors.CodeValidation, "imageHash must be 64 hex characters")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", dErrors.New(dErrors.CodeValidation, "imageHash must be lowercase hex")
		}
	}
	return Fingerprint(s), nil
}

func (f Fingerprint) String() string {
	return string(f)
}
