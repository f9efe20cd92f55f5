package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

const streamMaxLen = 10_000

// SignalBus implements domain.SignalBus in process. Slow subscribers miss
// messages rather than block publishers, like redis pub/sub.
type SignalBus struct {
	mu      sync.RWMutex
	subs    map[string]map[chan []byte]struct{}
	streams map[string]*stream
}

type stream struct {
	seq     uint64
	entries []domain.StreamMessage
}

// NewSignalBus creates an empty bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string]map[chan []byte]struct{}),
		streams: make(map[string]*stream),
	}
}

// Publish delivers payload to current subscribers of channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- append([]byte(nil), payload...):
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published after the call. It is
// closed when ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// StreamAppend adds payload to the stream, keeping the newest entries.
func (b *SignalBus) StreamAppend(_ context.Context, name string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[name]
	if !ok {
		s = &stream{}
		b.streams[name] = s
	}
	s.seq++
	s.entries = append(s.entries, domain.StreamMessage{
		ID:      strconv.FormatUint(s.seq, 10),
		Payload: append([]byte(nil), payload...),
	})
	if over := len(s.entries) - streamMaxLen; over > 0 {
		s.entries = append(s.entries[:0:0], s.entries[over:]...)
	}
	return nil
}

// StreamRead returns up to count entries with ids after lastID. Ids are
// decimal sequence numbers; "0" reads from the start.
func (b *SignalBus) StreamRead(_ context.Context, name string, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "" {
		lastID = "0"
	}
	after, err := strconv.ParseUint(lastID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("memory: stream read %s: invalid id %q", name, lastID)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.streams[name]
	if !ok {
		return nil, nil
	}
	var out []domain.StreamMessage
	for _, e := range s.entries {
		id, _ := strconv.ParseUint(e.ID, 10, 64)
		if id <= after {
			continue
		}
		out = append(out, domain.StreamMessage{ID: e.ID, Payload: append([]byte(nil), e.Payload...)})
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}
