package game

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

type settlement struct {
	betID string
	due   time.Time
	index int
}

type settlementHeap []*settlement

func (h settlementHeap) Len() int           { return len(h) }
func (h settlementHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h settlementHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *settlementHeap) Push(x any) {
	s := x.(*settlement)
	s.index = len(*h)
	*h = append(*h, s)
}

func (h *settlementHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}

// Scheduler fires each scheduled bet exactly once, as soon as its due time passes.
// A single goroutine (Run) owns the timer; it is always armed for the earliest item.
type Scheduler struct {
	mu    sync.Mutex
	items settlementHeap
	byID  map[string]*settlement
	wake  chan struct{}

	fire func(betID string)
	now  func() time.Time
	log  *slog.Logger
}

func NewScheduler(fire func(betID string), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		byID: make(map[string]*settlement),
		wake: make(chan struct{}, 1),
		fire: fire,
		now:  time.Now,
		log:  logger,
	}
}

// Schedule registers betID to fire at due. Rescheduling an already pending bet is a no-op.
func (s *Scheduler) Schedule(betID string, due time.Time) {
	s.mu.Lock()
	if _, ok := s.byID[betID]; ok {
		s.mu.Unlock()
		return
	}
	item := &settlement{betID: betID, due: due}
	heap.Push(&s.items, item)
	s.byID[betID] = item
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether betID is scheduled and not yet due.
func (s *Scheduler) Pending(betID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[betID]
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Scheduler) Run(ctx context.Context) error {
	for {
		due, wait := s.popDue()
		for _, id := range due {
			s.fireOne(id)
		}
		if len(due) > 0 {
			continue
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		if wait >= 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-s.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// popDue removes every item due at now and returns the wait until the next one, or -1
// when nothing is scheduled.
func (s *Scheduler) popDue() ([]string, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []string
	for len(s.items) > 0 && !s.items[0].due.After(now) {
		item := heap.Pop(&s.items).(*settlement)
		delete(s.byID, item.betID)
		due = append(due, item.betID)
	}
	if len(s.items) == 0 {
		return due, -1
	}
	return due, s.items[0].due.Sub(now)
}

func (s *Scheduler) fireOne(betID string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("bet settlement panicked", "bet_id", betID, "panic", r)
		}
	}()
	s.fire(betID)
}
