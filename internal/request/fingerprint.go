package request

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainRequest separates request fingerprints from any other hash the
// service computes. The suffix allows the encoding to change later.
const DomainRequest = "loadmix/request/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a stable content hash of the request. Two requests
// that compose the same table from the same sources share a fingerprint.
//
// encoding/json writes map keys in sorted order, so the payload encoding is
// deterministic.
func (r *CompositionRequest) Fingerprint() (string, error) {
	data, err := json.Marshal(r.ToPayload())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainRequest, data), nil
}
