package schedule

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewEditToken returns an unguessable capability token. Knowing the token is
// the whole authorization for patient self-service, so it must come from a
// CSPRNG.
func NewEditToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
