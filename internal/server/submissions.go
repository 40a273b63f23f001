package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/dygy/gape-select/internal/effect"
)

// Submission status constants
type SubmissionStatus string

const (
	StatusDispatched SubmissionStatus = "dispatched"
	StatusRejected   SubmissionStatus = "rejected"
	StatusFailed     SubmissionStatus = "failed"
)

// maxSubmissions bounds the in-memory log
const maxSubmissions = 100

// Submission records one POST /submit
type Submission struct {
	ID        string           `json:"id"`
	Status    SubmissionStatus `json:"status"`
	Effect    string           `json:"effect,omitempty"`
	Preset    string           `json:"preset,omitempty"`
	Output    *effect.Output   `json:"output,omitempty"`
	Field     string           `json:"field,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// SubmissionLog keeps the most recent submissions
type SubmissionLog struct {
	mu    sync.RWMutex
	items map[string]*Submission
	order []string
	seq   uint64
}

// NewSubmissionLog creates an empty log
func NewSubmissionLog() *SubmissionLog {
	return &SubmissionLog{
		items: make(map[string]*Submission),
	}
}

// Add assigns an ID to s and stores it, evicting the oldest entry when full
func (l *SubmissionLog) Add(s *Submission) *Submission {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	s.ID = strconv.FormatUint(l.seq, 10)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	l.items[s.ID] = s
	l.order = append(l.order, s.ID)
	if len(l.order) > maxSubmissions {
		delete(l.items, l.order[0])
		l.order = l.order[1:]
	}
	return s
}

// Get retrieves a submission by ID
func (l *SubmissionLog) Get(id string) *Submission {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[id]
}

// List returns submissions newest first
func (l *SubmissionLog) List() []*Submission {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Submission, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		out = append(out, l.items[l.order[i]])
	}
	return out
}
