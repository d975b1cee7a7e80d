package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"mercator-hq/bdl/pkg/audit"
)

// Canonicalize encodes v as RFC 8785 canonical JSON.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// HashContent computes the SHA-256 hash of the content and returns it as a
// hex-encoded string. Returns an empty string if content is empty.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// Verify recomputes the payload hash of r. Payloads are canonicalized again
// first, so a backend that re-encodes JSON still verifies.
func Verify(r *audit.Record) error {
	canonical, err := jcs.Transform(r.Payload)
	if err != nil {
		return fmt.Errorf("canonicalize trace %s: %w", r.TraceID, err)
	}
	if got := HashContent(canonical); got != r.Hash {
		return &audit.IntegrityError{TraceID: r.TraceID, Expected: r.Hash, Actual: got}
	}
	return nil
}
