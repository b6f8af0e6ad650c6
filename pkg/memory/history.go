package memory

import (
	"github.com/boristopalov/cleaner/pkg/core"
)

// StepRecord is the state of a run right after one executed step.
type StepRecord struct {
	Step      int         `json:"step"`
	Action    core.Action `json:"action"`
	Position  int         `json:"position"`
	Energy    float64     `json:"energy"`
	Dirtiness []int       `json:"dirtiness"`
	Redirtied []int       `json:"redirtied,omitempty"` // rooms soiled by the re-dirtying pass
}

// History keeps step records in order. With a positive capacity the oldest
// records are dropped once it is exceeded.
type History struct {
	records  []StepRecord
	capacity int
}

// NewHistory creates a history. capacity <= 0 keeps every record.
func NewHistory(capacity int) *History {
	initial := capacity
	if initial <= 0 {
		initial = 16
	}
	return &History{
		records:  make([]StepRecord, 0, initial),
		capacity: capacity,
	}
}

// Records returns a copy of the stored records
func (h *History) Records() []StepRecord {
	records := make([]StepRecord, len(h.records))
	copy(records, h.records)
	return records
}

func (h *History) Len() int {
	return len(h.records)
}

func (h *History) Store(r StepRecord) {
	h.records = append(h.records, r)

	if h.capacity > 0 && len(h.records) > h.capacity {
		h.records = h.records[len(h.records)-h.capacity:]
	}
}
