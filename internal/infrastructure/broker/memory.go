package broker

import (
	"sync"

	"go.uber.org/zap"
)

// MemoryBus is an in-process Bus for tests and single-process
// development. Delivery is asynchronous like a real broker: Publish
// returns before handlers run, and handlers for one message run
// concurrently with handlers for the next.
type MemoryBus struct {
	mu       sync.RWMutex
	closed   bool
	nextID   int
	handlers map[string]map[int]Handler
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewMemoryBus creates an empty MemoryBus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBus{
		handlers: make(map[string]map[int]Handler),
		logger:   logger,
	}
}

// Publish delivers data asynchronously to every subscriber of subject.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	if subject == "" {
		return ErrEmptySubject
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]Handler, 0, len(b.handlers[subject]))
	for _, h := range b.handlers[subject] {
		subs = append(subs, h)
	}
	b.mu.RUnlock()

	msg := Message{Subject: subject, Data: data}
	for _, h := range subs {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("subscriber handler panicked",
						zap.String("subject", subject),
						zap.Any("panic", r))
				}
			}()
			h(msg)
		}()
	}
	return nil
}

// Subscribe registers a handler for subject.
func (b *MemoryBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	if subject == "" {
		return nil, ErrEmptySubject
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	if b.handlers[subject] == nil {
		b.handlers[subject] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[subject][id] = handler

	return &memorySubscription{bus: b, subject: subject, id: id}, nil
}

// Close stops accepting publishes and waits for in-flight deliveries.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.handlers = make(map[string]map[int]Handler)
	b.mu.Unlock()
	b.wg.Wait()
}

type memorySubscription struct {
	bus     *MemoryBus
	subject string
	id      int
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.handlers[s.subject], s.id)
	return nil
}

// Ensure MemoryBus implements Bus
var _ Bus = (*MemoryBus)(nil)
