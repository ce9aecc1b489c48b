// Package ids generates user identifiers.
package ids

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces ULIDs that are strictly increasing within one process,
// even when several are created in the same millisecond.
type Generator struct {
	m       sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGeneratorWith creates a Generator with the given entropy source and clock.
func NewGeneratorWith(entropy io.Reader, now func() time.Time) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
		now:     now,
	}
}

// New returns a new 26 character ULID string.
func (g *Generator) New() (string, error) {
	g.m.Lock()
	defer g.m.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("new ulid: %w", err)
	}

	return id.String(), nil
}
