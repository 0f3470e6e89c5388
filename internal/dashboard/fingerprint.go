package dashboard

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a short hex BLAKE3 digest of a rendered response.
// Pollers compare it to skip redundant redraws and it doubles as the ETag.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// FingerprintOf marshals v and fingerprints the result.
func FingerprintOf(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding for fingerprint: %w", err)
	}
	return Fingerprint(data), nil
}
