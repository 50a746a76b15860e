package jobs

import (
	"fmt"
	"sync"
)

// Rotation is a round-robin cursor over universe ids
type Rotation struct {
	mu     sync.Mutex
	ids    []string
	cursor int
}

// NewRotation creates a cursor positioned on the first id
func NewRotation(ids []string) (*Rotation, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("rotation needs at least one universe")
	}
	return &Rotation{ids: append([]string(nil), ids...)}, nil
}

// Next returns the current id and advances the cursor
func (r *Rotation) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.ids[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.ids)
	return id
}

// Cursor returns the index the next call to Next will use
func (r *Rotation) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// IDs returns the rotation order
func (r *Rotation) IDs() []string {
	return append([]string(nil), r.ids...)
}
