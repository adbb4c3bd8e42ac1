package sink

import (
	"sync"

	"liuproxy_checker/proxypool/model"
)

// Sink 是一个无界的多生产者/单消费者结果队列。
// Push 永不阻塞、永不失败；消费者通过 Drain 一次取走全部结果。
type Sink struct {
	mu    sync.Mutex
	queue []model.ValidationResult
	ready chan struct{}
}

func New() *Sink {
	return &Sink{
		ready: make(chan struct{}, 1),
	}
}

// Push enqueues a result and signals Ready without blocking.
func (s *Sink) Push(r model.ValidationResult) {
	s.mu.Lock()
	s.queue = append(s.queue, r)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns everything currently queued, oldest first.
// It returns nil when the queue is empty.
func (s *Sink) Drain() []model.ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	out := s.queue
	s.queue = nil
	return out
}

// Len returns the number of queued results.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Ready fires at least once after any Push that happened since the last receive.
func (s *Sink) Ready() <-chan struct{} {
	return s.ready
}
