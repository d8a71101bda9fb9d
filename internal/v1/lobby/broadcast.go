package lobby

import (
	"sync"

	"github.com/lobbysignal/signalhub/internal/v1/metrics"
)

// Broadcast is a multi-producer, multi-subscriber channel with a bounded
// backlog per subscriber. A subscriber that falls behind the bound is not
// torn down — a publish that finds its buffer full is simply dropped for it
// and it keeps receiving later publishes, mirroring the teacher's
// "select { case ch <- msg: default: }" pattern in its room broadcast, here
// generalized to a standalone pub/sub primitive so it can back chat,
// session-list-changed, and global-members-changed uniformly.
type Broadcast[T any] struct {
	mu       sync.Mutex
	backlog  int
	subs     map[int]chan T
	nextID   int
	label    string // metrics label, e.g. "chat" or "session_list"
}

// NewBroadcast creates a Broadcast with the given per-subscriber backlog.
func NewBroadcast[T any](backlog int, label string) *Broadcast[T] {
	return &Broadcast[T]{
		backlog: backlog,
		subs:    make(map[int]chan T),
		label:   label,
	}
}

// Subscription is a handle returned by Subscribe. Call Unsubscribe when the
// caller is done receiving; it closes the subscriber's channel.
type Subscription[T any] struct {
	id int
	ch chan T
	b  *Broadcast[T]
}

// C returns the channel to range/select over.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Unsubscribe removes this subscriber and closes its channel. Safe to call
// more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if ch, ok := s.b.subs[s.id]; ok {
		delete(s.b.subs, s.id)
		close(ch)
	}
}

// Subscribe registers a new subscriber and returns its handle. Subscribing
// never blocks and never requires a session lock to already be released —
// callers in this package always subscribe after releasing their session
// lock, per the no-suspension-under-lock rule.
func (b *Broadcast[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan T, b.backlog)
	b.subs[id] = ch
	return &Subscription[T]{id: id, ch: ch, b: b}
}

// Publish delivers value to every current subscriber without blocking. A
// subscriber whose buffer is full has this publish dropped for it (lag) and
// continues receiving later publishes; it is never disconnected for lagging.
func (b *Broadcast[T]) Publish(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- value:
		default:
			if b.label != "" {
				metrics.BroadcastLagEvents.WithLabelValues(b.label).Inc()
			}
		}
	}
}

// SubscriberCount reports the current number of subscribers (test/metrics use).
func (b *Broadcast[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// SignalPipe is the per-member signal delivery pipe referenced by
// sessions[s].signal_senders. It is logically unbounded: a peer's signal
// stream must never lose a queued offer/answer/candidate to backpressure,
// so sends never block and never drop. It is implemented as a small
// goroutine draining an internally growing slice into the receive channel,
// the standard Go pattern for an unbounded channel since the stdlib offers
// no such primitive directly.
type SignalPipe struct {
	in     chan Signal
	out    chan Signal
	done   chan struct{}
	closed sync.Once
}

// NewSignalPipe starts the pipe's relay goroutine and returns it.
func NewSignalPipe() *SignalPipe {
	p := &SignalPipe{
		in:   make(chan Signal),
		out:  make(chan Signal),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *SignalPipe) run() {
	defer close(p.out)
	var queue []Signal
	for {
		if len(queue) == 0 {
			select {
			case v, ok := <-p.in:
				if !ok {
					return
				}
				queue = append(queue, v)
			case <-p.done:
				return
			}
			continue
		}
		select {
		case v, ok := <-p.in:
			if !ok {
				// drain remaining queue then exit
				for _, q := range queue {
					p.out <- q
				}
				return
			}
			queue = append(queue, v)
		case p.out <- queue[0]:
			queue = queue[1:]
		case <-p.done:
			return
		}
	}
}

// Send enqueues a signal. It never blocks and never fails — the spec treats
// a closed receiver as a silent no-op, so Send after Close is a safe no-op.
func (p *SignalPipe) Send(s Signal) {
	select {
	case p.in <- s:
	case <-p.done:
	}
}

// C returns the channel a bridge task ranges over to deliver signals
// downstream.
func (p *SignalPipe) C() <-chan Signal {
	return p.out
}

// Close stops the relay goroutine. Safe to call more than once.
func (p *SignalPipe) Close() {
	p.closed.Do(func() { close(p.done) })
}
