package rule

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// fingerprintDomain separates rule fingerprints from other hashes.
// The version suffix allows the algorithm to change later.
const fingerprintDomain = "harmonization/rule/v1"

// Fingerprint returns a content hash of the rule's serialized form.
// Two rules with the same pair and operations share a fingerprint.
//
// Format: hex(SHA256(domain + 0x00 + NFC(json(rule))))
func Fingerprint(r *Rule) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", r.Pair(), err)
	}
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	h.Write(norm.NFC.Bytes(data))
	return hex.EncodeToString(h.Sum(nil)), nil
}
