package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryOutboundBuffer is a process-local outbound buffer for nodes that run
// without Redis, such as the one-shot CLI sender. Contents do not survive a
// restart.
type MemoryOutboundBuffer struct {
	mu     sync.Mutex
	queues map[string]map[string][][]byte
}

func NewMemoryOutboundBuffer() *MemoryOutboundBuffer {
	return &MemoryOutboundBuffer{queues: make(map[string]map[string][][]byte)}
}

func (b *MemoryOutboundBuffer) Push(_ context.Context, identity, destination string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	byDest, ok := b.queues[identity]
	if !ok {
		byDest = make(map[string][][]byte)
		b.queues[identity] = byDest
	}
	byDest[destination] = append(byDest[destination], append([]byte(nil), data...))
	return nil
}

func (b *MemoryOutboundBuffer) Pop(_ context.Context, identity, destination string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.queues[identity][destination]
	if len(queue) == 0 {
		return nil, false, nil
	}
	head := queue[len(queue)-1]
	queue = queue[:len(queue)-1]
	if len(queue) == 0 {
		delete(b.queues[identity], destination)
		if len(b.queues[identity]) == 0 {
			delete(b.queues, identity)
		}
	} else {
		b.queues[identity][destination] = queue
	}
	return head, true, nil
}

func (b *MemoryOutboundBuffer) Destinations(_ context.Context, identity string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	destinations := make([]string, 0, len(b.queues[identity]))
	for destination := range b.queues[identity] {
		destinations = append(destinations, destination)
	}
	sort.Strings(destinations)
	return destinations, nil
}

func (b *MemoryOutboundBuffer) Len(_ context.Context, identity, destination string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.queues[identity][destination])), nil
}
