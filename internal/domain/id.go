package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random UUID, falling back to a timestamp+random composite
// when the system entropy source fails.
func NewID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return fallbackID(time.Now())
}

func fallbackID(now time.Time) string {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("id_%d_%06d", now.UnixMilli(), now.Nanosecond()%1000000)
	}
	return fmt.Sprintf("id_%d_%s", now.UnixMilli(), hex.EncodeToString(suffix))
}
