package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainCatalog prefixes catalog snapshot fingerprints. The version
// suffix leaves room for algorithm migration.
const DomainCatalog = "offpos/catalog/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the domain-separated SHA-256 of v's canonical JSON.
// v may be any JSON-serializable value; it is normalized via FromStruct.
func Fingerprint(domain string, v any) (string, error) {
	value, err := FromStruct(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	data, err := Marshal(value)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(domain string, v any) string {
	fp, err := Fingerprint(domain, v)
	if err != nil {
		panic(err)
	}
	return fp
}
