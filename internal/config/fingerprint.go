package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/tangle/internal/detector"
)

// fingerprintDomain separates config fingerprints from any other hash of
// the same bytes. The version suffix allows the encoding to change.
const fingerprintDomain = "tangle/config/v1"

// Fingerprint is a content hash of the settings that determine a run's
// output. Two configs with the same fingerprint reconstruct any step log
// to the same records, whatever their worker counts.
//
// Defaulted central crystals and fast path are written out, so leaving them
// unset and setting them to their defaults give the same fingerprint.
//
// Format: hex(SHA256(domain + 0x00 + canonical JSON))
func (c Config) Fingerprint() (string, error) {
	layout, err := c.Layout()
	if err != nil {
		return "", fmt.Errorf("fingerprint config: %w", err)
	}

	fields := c.schemaFields()
	delete(fields, "workers")
	fields["central"] = []int{layout.Central(detector.SideA), layout.Central(detector.SideB)}
	fields["fast_path"] = c.FastPathEnabled()

	// encoding/json writes map keys in sorted order
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("fingerprint config: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
