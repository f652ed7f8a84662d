package delivery

import (
	"sort"
	"sync"
)

// NewMemoryLog returns an in-memory RecordRepository. It is the default
// delivery log when no persistent repository is configured.
func NewMemoryLog() RecordRepository {
	return &memoryLog{}
}

type memoryLog struct {
	mu      sync.Mutex
	records []Record
}

func (l *memoryLog) Append(record *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, *record)

	return nil
}

func (l *memoryLog) Matching(criteria RecordCriteria) ([]Record, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []Record
	for _, record := range l.records {
		if criteria.matches(record) {
			matched = append(matched, record)
		}
	}

	// Most recent first, mirroring the history view.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)

	if criteria.Offset > 0 {
		if criteria.Offset >= len(matched) {
			return nil, total, nil
		}

		matched = matched[criteria.Offset:]
	}

	if criteria.Limit > 0 && criteria.Limit < len(matched) {
		matched = matched[:criteria.Limit]
	}

	return matched, total, nil
}
