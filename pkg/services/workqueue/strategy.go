package workqueue

import "sync"

// ConcurrencyStrategy controls how many tasks run at once.
// The strategy tracks running tasks and decides whether another may start.
type ConcurrencyStrategy interface {
	CanStart() bool
	OnStart()
	OnComplete()
}

// LimitedStrategy allows up to maxConcurrent tasks to run in parallel.
type LimitedStrategy struct {
	mu            sync.Mutex
	maxConcurrent int
	running       int
}

// NewLimitedStrategy creates a strategy running at most maxConcurrent tasks.
// Values below 1 are treated as 1.
func NewLimitedStrategy(maxConcurrent int) *LimitedStrategy {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &LimitedStrategy{maxConcurrent: maxConcurrent}
}

// NewSerializedStrategy runs one task at a time.
func NewSerializedStrategy() *LimitedStrategy {
	return NewLimitedStrategy(1)
}

func (s *LimitedStrategy) CanStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running < s.maxConcurrent
}

func (s *LimitedStrategy) OnStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running++
}

func (s *LimitedStrategy) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running > 0 {
		s.running--
	}
}

// Running returns the number of tasks currently counted as running.
func (s *LimitedStrategy) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
