package proto

import (
	"encoding/json"
	"time"
)

// MemoryEntry is one row of the append-only chat memory log. Embedding
// is nil unless similarity search is enabled for this entry.
type MemoryEntry struct {
	ID        int64
	Role      string
	Time      time.Time
	Content   json.RawMessage
	Embedding []float32
}
