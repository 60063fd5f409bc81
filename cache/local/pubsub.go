package local

import (
	"context"
	"sync"
)

// Message is an in-process pub/sub message.
type Message struct {
	Channel string
	Payload string
}

type sub struct {
	out chan *Message
}

// LocalPubSub fans messages out to in-process subscribers. Slow
// subscribers lose messages rather than blocking the publisher.
type LocalPubSub struct {
	mu      sync.RWMutex
	chans   map[string]map[*sub]struct{}
	bufSize int
}

// NewPubSub creates a LocalPubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		chans:   make(map[string]map[*sub]struct{}),
		bufSize: bufSize,
	}
}

// Publish delivers the message to every current subscriber of the channel.
func (ps *LocalPubSub) Publish(_ context.Context, channel, payload string) error {
	msg := &Message{Channel: channel, Payload: payload}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for s := range ps.chans[channel] {
		select {
		case s.out <- msg:
		default:
			// Full buffer: drop for this subscriber.
		}
	}
	return nil
}

// Subscribe registers for the given channels. The returned cancel func is
// idempotent; it removes the registration and closes the message channel.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *Message, func(), error) {
	s := &sub{out: make(chan *Message, ps.bufSize)}

	ps.mu.Lock()
	for _, c := range channels {
		if ps.chans[c] == nil {
			ps.chans[c] = make(map[*sub]struct{})
		}
		ps.chans[c][s] = struct{}{}
	}
	ps.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ps.mu.Lock()
			for _, c := range channels {
				delete(ps.chans[c], s)
				if len(ps.chans[c]) == 0 {
					delete(ps.chans, c)
				}
			}
			ps.mu.Unlock()
			close(s.out)
		})
	}
	return s.out, cancel, nil
}
