package mergequeue

import (
	"context"
	"sync"
	"time"

	"github.com/simplesurance/automerge/internal/orderedmap"
)

// MemoryStore is an in-process Store.
// Its state is lost when the process terminates.
type MemoryStore struct {
	lock   sync.Mutex
	queues map[BranchID]*orderedmap.Map[int, *Entry]
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queues: map[BranchID]*orderedmap.Map[int, *Entry]{},
		now:    time.Now,
	}
}

func copyEntry(e *Entry) *Entry {
	c := *e
	if e.ActiveSince != nil {
		t := *e.ActiveSince
		c.ActiveSince = &t
	}

	return &c
}

func (s *MemoryStore) Enqueue(_ context.Context, e *Entry) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	q, exist := s.queues[e.Branch]
	if !exist {
		q = orderedmap.New[int, *Entry]()
		s.queues[e.Branch] = q
	}

	if existing, exist := q.Get(e.PullNumber); exist {
		existing.SyncMethod = e.SyncMethod
		return false, nil
	}

	n := copyEntry(e)
	n.ActiveSince = nil

	return q.EnqueueIfNotExist(e.PullNumber, n), nil
}

func (s *MemoryStore) Dequeue(_ context.Context, branch *BranchID, pullNumber int) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	q, exist := s.queues[*branch]
	if !exist {
		return false, nil
	}

	_, removed := q.Dequeue(pullNumber)
	if q.Len() == 0 {
		delete(s.queues, *branch)
	}

	return removed, nil
}

func (s *MemoryStore) Entries(_ context.Context, branch *BranchID) ([]*Entry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	q, exist := s.queues[*branch]
	if !exist {
		return nil, nil
	}

	result := make([]*Entry, 0, q.Len())
	q.Foreach(func(_ int, e *Entry) bool {
		result = append(result, copyEntry(e))
		return true
	})

	return result, nil
}

func (s *MemoryStore) Branches(context.Context) ([]*BranchID, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	result := make([]*BranchID, 0, len(s.queues))
	for branch := range s.queues {
		b := branch
		result = append(result, &b)
	}

	return result, nil
}

func (s *MemoryStore) Claim(_ context.Context, branch *BranchID, ttl time.Duration) (*Entry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	q, exist := s.queues[*branch]
	if !exist {
		return nil, nil
	}

	now := s.now()
	claimed := false
	q.Foreach(func(_ int, e *Entry) bool {
		if e.ActiveSince == nil {
			return true
		}

		if now.Sub(*e.ActiveSince) >= ttl {
			e.ActiveSince = nil
			return true
		}

		claimed = true
		return false
	})
	if claimed {
		return nil, nil
	}

	_, first, exist := q.First()
	if !exist {
		return nil, nil
	}

	first.ActiveSince = &now

	return copyEntry(first), nil
}

func (s *MemoryStore) Release(_ context.Context, branch *BranchID, pullNumber int) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	q, exist := s.queues[*branch]
	if !exist {
		return nil
	}

	if e, exist := q.Get(pullNumber); exist {
		e.ActiveSince = nil
	}

	return nil
}
