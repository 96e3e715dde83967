package dal

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local store for development and tests. It does not survive restarts.
type Memory struct {
	mx   sync.RWMutex
	subs map[int64]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		subs: make(map[int64]time.Time),
		now:  time.Now,
	}
}

func (s *Memory) AddSubscriber(_ context.Context, chatID int64) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if _, ok := s.subs[chatID]; ok {
		return false, nil
	}
	s.subs[chatID] = s.now()
	return true, nil
}

func (s *Memory) RemoveSubscriber(_ context.Context, chatID int64) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if _, ok := s.subs[chatID]; !ok {
		return false, nil
	}
	delete(s.subs, chatID)
	return true, nil
}

func (s *Memory) ExistsSubscriber(_ context.Context, chatID int64) (bool, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	_, ok := s.subs[chatID]
	return ok, nil
}

func (s *Memory) ListSubscribers(_ context.Context) ([]Subscriber, error) {
	s.mx.RLock()
	res := make([]Subscriber, 0, len(s.subs))
	for id, createdAt := range s.subs {
		res = append(res, Subscriber{ChatID: id, CreatedAt: createdAt})
	}
	s.mx.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].ChatID < res[j].ChatID
	})
	return res, nil
}

func (s *Memory) Ping(context.Context) error {
	return nil
}

func (s *Memory) Close() error {
	return nil
}
