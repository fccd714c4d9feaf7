package review

import (
	"fmt"
	"sync"

	"github.com/mmynk/rentledger/internal/models"
)

// Sessions holds review queues between review and confirmation.
type Sessions struct {
	mu     sync.Mutex
	queues map[string]*models.ReviewQueue
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{queues: make(map[string]*models.ReviewQueue)}
}

// Put stores or replaces the queue for its batch.
func (s *Sessions) Put(queue *models.ReviewQueue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[queue.BatchID] = queue
}

// Get returns a copy of the queue for batchID.
func (s *Sessions) Get(batchID string) (*models.ReviewQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[batchID]
	if !ok {
		return nil, false
	}
	cp := *q
	cp.Items = append([]models.ReviewItem(nil), q.Items...)
	return &cp, true
}

// Delete ends a session.
func (s *Sessions) Delete(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, batchID)
}

// Summary counts the items of a session by status.
func (s *Sessions) Summary(batchID string) (map[models.ReviewStatus]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[batchID]
	if !ok {
		return nil, false
	}
	counts := make(map[models.ReviewStatus]int)
	for _, item := range q.Items {
		counts[item.Status]++
	}
	return counts, true
}

// Confirmation is a reviewer's decision for one item, addressed by line.
type Confirmation struct {
	Line            int    `json:"line"`
	PropertyID      *int64 `json:"property_id,omitempty"`
	CustomerID      *int64 `json:"customer_id,omitempty"`
	LeaseID         *int64 `json:"lease_id,omitempty"`
	PaymentSourceID *int64 `json:"payment_source_id,omitempty"`

	// SkipDuplicate overrides the default for duplicates when set.
	SkipDuplicate *bool `json:"skip_duplicate,omitempty"`

	// Skip drops the item from the commit.
	Skip bool `json:"skip,omitempty"`

	Note string `json:"note,omitempty"`
}

// Apply merges confirmations into the queue's items and returns the items
// to commit. Items without a confirmation keep their automatic selections.
func Apply(queue *models.ReviewQueue, confirmations []Confirmation) ([]models.ReviewItem, error) {
	byLine := make(map[int]int, len(queue.Items))
	for i, item := range queue.Items {
		byLine[item.Line] = i
	}

	items := append([]models.ReviewItem(nil), queue.Items...)
	skipped := make(map[int]bool)
	for _, c := range confirmations {
		i, ok := byLine[c.Line]
		if !ok {
			return nil, fmt.Errorf("no review item at line %d in batch %s", c.Line, queue.BatchID)
		}
		item := &items[i]
		if c.Skip {
			skipped[i] = true
			continue
		}
		if c.PropertyID != nil {
			item.PropertyID = c.PropertyID
		}
		if c.CustomerID != nil {
			item.CustomerID = c.CustomerID
		}
		if c.LeaseID != nil {
			item.LeaseID = c.LeaseID
		}
		if c.PaymentSourceID != nil {
			item.PaymentSourceID = c.PaymentSourceID
		}
		if c.SkipDuplicate != nil {
			item.SkipDuplicate = *c.SkipDuplicate
		}
		if c.Note != "" {
			item.Note = c.Note
		}
	}

	out := items[:0]
	for i, item := range items {
		if !skipped[i] {
			out = append(out, item)
		}
	}
	return out, nil
}
