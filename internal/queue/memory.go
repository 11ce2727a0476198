package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
)

type scheduled struct {
	event models.Event
	due   time.Time
}

// MemoryScheduler - отложенные события в памяти процесса
type MemoryScheduler struct {
	mu    sync.Mutex
	items []scheduled
	now   func() time.Time
}

func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{now: time.Now}
}

func (s *MemoryScheduler) Schedule(_ context.Context, ev models.Event, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, scheduled{event: ev, due: s.now().Add(delay)})
	return nil
}

func (s *MemoryScheduler) PopDue(_ context.Context, now time.Time, limit int) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].due.Before(s.items[j].due)
	})

	events := make([]models.Event, 0)
	rest := s.items[:0]
	for _, item := range s.items {
		if !item.due.After(now) && len(events) < limit {
			events = append(events, item.event)
			continue
		}
		rest = append(rest, item)
	}
	s.items = rest
	return events, nil
}

// Pending возвращает копию отложенных событий
func (s *MemoryScheduler) Pending() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]models.Event, len(s.items))
	for i, item := range s.items {
		events[i] = item.event
	}
	return events
}

// Drain доставляет все отложенные события независимо от срока, включая
// запланированные во время доставки, пока очередь не опустеет или не кончатся раунды
func (s *MemoryScheduler) Drain(ctx context.Context, handler Handler, rounds int) {
	for i := 0; i < rounds; i++ {
		events, _ := s.PopDue(ctx, time.Now().Add(24*365*time.Hour), len(s.Pending())+1)
		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			_ = handler(ctx, ev)
		}
	}
}
