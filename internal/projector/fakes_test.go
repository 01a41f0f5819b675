package projector_test

import (
	"context"
	"strconv"
	"sync"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
)

type item struct {
	payload string
	err     error
}

type fakeStream struct {
	items  chan item
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	offset    int
	committed []string
}

func newFakeStream(items ...item) *fakeStream {
	s := &fakeStream{items: make(chan item, 64), closed: make(chan struct{})}
	for _, it := range items {
		s.items <- it
	}
	return s
}

func (s *fakeStream) Next(ctx context.Context) (messaging.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, messaging.ErrStreamClosed
	case it, ok := <-s.items:
		if !ok {
			return nil, messaging.ErrStreamClosed
		}
		if it.err != nil {
			return nil, it.err
		}
		s.mu.Lock()
		s.offset++
		pos := strconv.Itoa(s.offset)
		s.mu.Unlock()
		return &fakeMessage{stream: s, payload: []byte(it.payload), pos: pos}, nil
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *fakeStream) commits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.committed...)
}

type fakeMessage struct {
	stream  *fakeStream
	payload []byte
	pos     string
}

func (m *fakeMessage) Payload() []byte  { return m.payload }
func (m *fakeMessage) Position() string { return m.pos }

func (m *fakeMessage) Commit(context.Context) error {
	m.stream.mu.Lock()
	defer m.stream.mu.Unlock()
	m.stream.committed = append(m.stream.committed, m.pos)
	return nil
}

type fakeSubscriber struct {
	stream *fakeStream
	err    error
}

func (s *fakeSubscriber) Subscribe(context.Context, string) (messaging.Stream, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

type capturePublisher struct {
	mu       sync.Mutex
	payloads []string
	topics   []string
}

func (p *capturePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, string(payload))
	return nil
}

func (p *capturePublisher) Close() error { return nil }
