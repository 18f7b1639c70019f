package solver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type fingerprintDoc struct {
	Mode  Mode            `json:"mode"`
	RunID string          `json:"run_id"`
	Body  json.RawMessage `json:"body"`
}

// Fingerprint returns a stable digest of the canonical serialization of r.
// Two requests share a fingerprint exactly when they would send the same
// body to the same endpoint with the same run id.
func Fingerprint(r *Request) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	doc, err := json.Marshal(fingerprintDoc{Mode: r.Mode, RunID: r.RunID, Body: body})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:]), nil
}
