// Package notify holds the most recent mutation outcome message and clears it
// after a fixed interval.
package notify

import (
	"sync"
	"time"
)

// DefaultTTL is how long a notification stays visible
const DefaultTTL = 3500 * time.Millisecond

// Kind classifies a notification
type Kind string

const (
	Info    Kind = "info"
	Success Kind = "success"
	Error   Kind = "error"
)

// Notification is one displayed message
type Notification struct {
	Message string
	Kind    Kind
	ShownAt time.Time
}

// Timer is a pending callback that can be cancelled
type Timer interface {
	Stop() bool
}

// Clock abstracts time so tests can drive expiry deterministically
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock returns the wall clock
func RealClock() Clock { return realClock{} }

// Sink observes every change; n is nil when the notification is cleared
type Sink func(n *Notification)

// Channel displays at most one notification. Showing a new one replaces the
// current one and restarts the expiry timer; nothing is queued.
type Channel struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	sink    Sink
	current *Notification
	timer   Timer
	seq     uint64
}

type Option func(*Channel)

// WithTTL overrides DefaultTTL
func WithTTL(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock injects the time source
func WithClock(clock Clock) Option {
	return func(c *Channel) { c.clock = clock }
}

// WithSink registers a change observer. It is called without the channel's
// lock held.
func WithSink(s Sink) Option {
	return func(c *Channel) { c.sink = s }
}

func New(opts ...Option) *Channel {
	c := &Channel{ttl: DefaultTTL, clock: RealClock()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Show replaces the current notification with message and schedules its
// removal ttl from now
func (c *Channel) Show(message string, kind Kind) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	n := &Notification{Message: message, Kind: kind, ShownAt: c.clock.Now()}
	c.current = n
	c.timer = c.clock.AfterFunc(c.ttl, func() { c.expire(seq) })
	sink := c.sink
	c.mu.Unlock()

	if sink != nil {
		copied := *n
		sink(&copied)
	}
}

func (c *Channel) Info(message string)    { c.Show(message, Info) }
func (c *Channel) Success(message string) { c.Show(message, Success) }
func (c *Channel) Error(message string)   { c.Show(message, Error) }

// Current returns the visible notification, if any
func (c *Channel) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

// Dismiss clears the visible notification immediately
func (c *Channel) Dismiss() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.seq++
	had := c.current != nil
	c.current = nil
	sink := c.sink
	c.mu.Unlock()

	if had && sink != nil {
		sink(nil)
	}
}

// expire clears the notification scheduled under seq. A timer that fires
// after being superseded finds a newer seq and does nothing.
func (c *Channel) expire(seq uint64) {
	c.mu.Lock()
	if seq != c.seq || c.current == nil {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.timer = nil
	sink := c.sink
	c.mu.Unlock()

	if sink != nil {
		sink(nil)
	}
}
