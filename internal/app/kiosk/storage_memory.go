package kiosk

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

// MemoryStorage хранилище в памяти. Используется как запасной вариант,
// когда не удалось открыть SQLite, и в тестах. Записи не переживают
// перезапуск процесса.
type MemoryStorage struct {
	mu       sync.RWMutex
	feedback map[string]*feedback.Entry
	queue    map[string]*queue.Entry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		feedback: make(map[string]*feedback.Entry),
		queue:    make(map[string]*queue.Entry),
	}
}

func (s *MemoryStorage) AddFeedback(_ context.Context, entry *feedback.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Status = feedback.StatusPending
	entry.RetryCount = 0
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Priority == "" {
		entry.Priority = feedback.PriorityMedium
	}

	clone := *entry
	s.feedback[entry.ID] = &clone
	return entry.ID, nil
}

func (s *MemoryStorage) GetFeedback(_ context.Context, id string) (*feedback.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.feedback[id]
	if !ok {
		return nil, feedback.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *MemoryStorage) ListPendingFeedback(_ context.Context) ([]*feedback.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*feedback.Entry
	for _, entry := range s.feedback {
		if entry.Status == feedback.StatusPending ||
			(entry.Status == feedback.StatusFailed && entry.Retryable()) {
			clone := *entry
			entries = append(entries, &clone)
		}
	}

	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []*feedback.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority.Rank() != entries[j].Priority.Rank() {
			return entries[i].Priority.Rank() < entries[j].Priority.Rank()
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

func (s *MemoryStorage) UpdateFeedbackStatus(_ context.Context, id string, status feedback.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.feedback[id]
	if !ok {
		return feedback.ErrNotFound
	}
	entry.Status = status
	entry.LastError = errMsg
	if status == feedback.StatusSynced {
		now := time.Now().UTC()
		entry.SyncedAt = &now
	}
	return nil
}

func (s *MemoryStorage) IncrementFeedbackRetry(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.feedback[id]
	if !ok {
		return 0, feedback.ErrNotFound
	}
	entry.RetryCount++
	return entry.RetryCount, nil
}

func (s *MemoryStorage) SetFeedbackDuplicate(_ context.Context, id, existingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.feedback[id]
	if !ok {
		return feedback.ErrNotFound
	}
	entry.Status = feedback.StatusSynced
	entry.DuplicateOf = existingID
	entry.LastError = ""
	now := time.Now().UTC()
	entry.SyncedAt = &now
	return nil
}

func (s *MemoryStorage) RemoveFeedback(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.feedback, id)
	return nil
}

func (s *MemoryStorage) AddQueueEntry(_ context.Context, entry *queue.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Status = feedback.StatusPending
	entry.RetryCount = 0
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Priority == "" {
		entry.Priority = feedback.PriorityLow
	}

	clone := *entry
	s.queue[entry.ID] = &clone
	return entry.ID, nil
}

func (s *MemoryStorage) GetQueueEntry(_ context.Context, id string) (*queue.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.queue[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *MemoryStorage) ListPendingQueue(_ context.Context) ([]*queue.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*queue.Entry
	for _, entry := range s.queue {
		if entry.Status == feedback.StatusPending ||
			(entry.Status == feedback.StatusFailed && entry.Retryable()) {
			clone := *entry
			entries = append(entries, &clone)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority.Rank() != entries[j].Priority.Rank() {
			return entries[i].Priority.Rank() < entries[j].Priority.Rank()
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *MemoryStorage) UpdateQueueStatus(_ context.Context, id string, status feedback.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.queue[id]
	if !ok {
		return queue.ErrNotFound
	}
	entry.Status = status
	entry.LastError = errMsg
	if status == feedback.StatusSynced {
		now := time.Now().UTC()
		entry.SyncedAt = &now
	}
	return nil
}

func (s *MemoryStorage) IncrementQueueRetry(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.queue[id]
	if !ok {
		return 0, queue.ErrNotFound
	}
	entry.RetryCount++
	return entry.RetryCount, nil
}

func (s *MemoryStorage) ResetQueueRetry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.queue[id]
	if !ok {
		return queue.ErrNotFound
	}
	entry.Status = feedback.StatusPending
	entry.RetryCount = 0
	entry.LastError = ""
	return nil
}

func (s *MemoryStorage) RemoveQueueEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.queue, id)
	return nil
}

func (s *MemoryStorage) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, entry := range s.feedback {
		if entry.Status != feedback.StatusSynced {
			count++
		}
	}
	for _, entry := range s.queue {
		if entry.Status != feedback.StatusSynced {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) PurgeSynced(_ context.Context, grace time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-grace)
	purged := 0

	for id, entry := range s.feedback {
		if entry.Status == feedback.StatusSynced && entry.SyncedAt != nil && entry.SyncedAt.Before(cutoff) {
			delete(s.feedback, id)
			purged++
		}
	}
	for id, entry := range s.queue {
		if entry.Status == feedback.StatusSynced && entry.SyncedAt != nil && entry.SyncedAt.Before(cutoff) {
			delete(s.queue, id)
			purged++
		}
	}

	return purged, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
