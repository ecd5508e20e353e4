package bus

import "context"

// FakeBus is an in-memory Bus for tests, backed by buffered channels so
// publish never blocks a single-threaded test and consume drains in FIFO
// order, mirroring the partition-by-orderId serialization guarantee
// without needing a broker.
type FakeBus struct {
	active chan Message
	retry  chan Message
}

// NewFakeBus builds a FakeBus with ample buffering for test scenarios.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		active: make(chan Message, 4096),
		retry:  make(chan Message, 4096),
	}
}

func (b *FakeBus) PublishActive(_ context.Context, msg Message) error {
	b.active <- msg
	return nil
}

func (b *FakeBus) PublishRetry(_ context.Context, msg Message) error {
	b.retry <- msg
	return nil
}

func (b *FakeBus) ConsumeActive(ctx context.Context) (Delivery, error) {
	select {
	case msg := <-b.active:
		return Delivery{Message: msg, ack: func(context.Context) error { return nil }}, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

func (b *FakeBus) ConsumeRetry(ctx context.Context) (Delivery, error) {
	select {
	case msg := <-b.retry:
		return Delivery{Message: msg, ack: func(context.Context) error { return nil }}, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

func (b *FakeBus) Close() error { return nil }

// DrainActive non-blockingly pulls every currently queued active message,
// useful for tests that want to assert on what was published without
// running a consumer goroutine.
func (b *FakeBus) DrainActive() []Message {
	return drain(b.active)
}

// DrainRetry is DrainActive for the retry topic.
func (b *FakeBus) DrainRetry() []Message {
	return drain(b.retry)
}

func drain(ch chan Message) []Message {
	var out []Message
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

var _ Bus = (*FakeBus)(nil)
var _ Bus = (*KafkaBus)(nil)
