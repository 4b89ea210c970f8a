package worker

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"
)

// LocalBus delivers messages to in-process handlers on goroutines. It stands
// in for nsqd when the queue is disabled and implements the same Publish
// contract as *nsq.Producer.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]nsq.Handler
	sem      chan struct{}
	wg       sync.WaitGroup
}

func NewLocalBus(concurrency int) *LocalBus {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &LocalBus{
		handlers: make(map[string][]nsq.Handler),
		sem:      make(chan struct{}, concurrency),
	}
}

func (b *LocalBus) Subscribe(topic string, h nsq.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish hands body to every subscriber of topic and returns without waiting.
func (b *LocalBus) Publish(topic string, body []byte) error {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscriber for topic %s", topic)
	}

	msgBody := make([]byte, len(body))
	copy(msgBody, body)

	for _, h := range handlers {
		b.wg.Add(1)
		go func(h nsq.Handler) {
			defer b.wg.Done()
			b.sem <- struct{}{}
			defer func() { <-b.sem }()

			msg := nsq.NewMessage(nsq.MessageID(uuid.New()), msgBody)
			if err := h.HandleMessage(msg); err != nil {
				slog.Error("local handler failed", "topic", topic, "error", err)
			}
		}(h)
	}
	return nil
}

// Wait blocks until every published message, including those published by
// handlers, has been handled.
func (b *LocalBus) Wait() {
	b.wg.Wait()
}
