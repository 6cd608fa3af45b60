// Package dispatch implements the ordering backbone of the notification core.
//
// All discrete events pass through one delivery sequencer goroutine in the
// order they were produced, so events about one entity are never reordered
// and events about different entities keep their relative production order.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/rtcevent/clock"
	"github.com/opd-ai/rtcevent/event"
	"github.com/sirupsen/logrus"
)

// DefaultQueueWarnDepth is the queue depth above which a slow-observer warning is logged.
const DefaultQueueWarnDepth = 4096

// Token identifies one observer registration.
type Token uint64

// Envelope wraps one event with its sequencing metadata. Seq increases in
// delivery order for queued events. Debug errors skip the queue and take the
// next number when they are raised.
type Envelope struct {
	ID       string
	Seq      uint64
	Produced time.Time
	Event    event.Event
}

// EnvelopeObserver receives every event as an envelope, regardless of the
// handler groups it implements. Used by diagnostic taps.
type EnvelopeObserver interface {
	HandleEnvelope(env Envelope)
}

// Options configures a Dispatcher.
type Options struct {
	// VerboseDiagnostics enables delivery of debug-error events
	VerboseDiagnostics bool
	// QueueWarnDepth is the backlog size that triggers a warning; zero uses the default
	QueueWarnDepth int
	// TimeProvider stamps Envelope.Produced; nil uses the real clock
	TimeProvider clock.TimeProvider
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Published  uint64
	Delivered  uint64
	Dropped    uint64
	QueueDepth int
	Observers  int
}

type registration struct {
	token    Token
	observer any
	active   atomic.Bool
}

type envelope struct {
	Envelope
	targets []*registration
	barrier chan struct{}
}

// Dispatcher fans events out to registered observers through a single
// delivery sequencer. Registration is copy-on-write so it never waits for
// in-flight delivery.
type Dispatcher struct {
	observers atomic.Pointer[[]*registration]
	regMu     sync.Mutex
	nextToken Token

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []envelope
	running bool
	closed  bool
	warned  bool
	done    chan struct{}

	verbose   atomic.Bool
	warnDepth int
	clock     clock.TimeProvider
	seq       uint64

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a dispatcher. Call Start to begin delivery.
func New(opts Options) *Dispatcher {
	if opts.QueueWarnDepth <= 0 {
		opts.QueueWarnDepth = DefaultQueueWarnDepth
	}
	d := &Dispatcher{
		warnDepth: opts.QueueWarnDepth,
		clock:     clock.Resolve(opts.TimeProvider),
		done:      make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	empty := make([]*registration, 0)
	d.observers.Store(&empty)
	d.verbose.Store(opts.VerboseDiagnostics)

	logrus.WithFields(logrus.Fields{
		"function":         "dispatch.New",
		"verbose":          opts.VerboseDiagnostics,
		"queue_warn_depth": opts.QueueWarnDepth,
	}).Debug("Dispatcher created")

	return d
}

// Start launches the delivery sequencer.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.running {
		return ErrAlreadyRunning
	}
	d.running = true
	go d.run()

	logrus.WithFields(logrus.Fields{
		"function": "Dispatcher.Start",
	}).Info("Event dispatcher started")
	return nil
}

// Stop delivers every queued event, then stops the sequencer. Events
// published afterwards are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	running := d.running
	d.cond.Broadcast()
	d.mu.Unlock()

	if running {
		<-d.done
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Dispatcher.Stop",
		"delivered": d.delivered.Load(),
		"dropped":   d.dropped.Load(),
	}).Info("Event dispatcher stopped")
}

// SetVerboseDiagnostics toggles delivery of debug-error events.
func (d *Dispatcher) SetVerboseDiagnostics(enabled bool) {
	d.verbose.Store(enabled)
}

// VerboseDiagnostics reports whether debug-error events are delivered.
func (d *Dispatcher) VerboseDiagnostics() bool {
	return d.verbose.Load()
}

// Register adds an observer. o must implement at least one handler group of
// package event or EnvelopeObserver.
func (d *Dispatcher) Register(o any) (Token, error) {
	if o == nil {
		return 0, ErrNotObserver
	}
	if _, ok := o.(EnvelopeObserver); !ok && !event.IsObserver(o) {
		return 0, fmt.Errorf("%w: %T", ErrNotObserver, o)
	}

	d.regMu.Lock()
	defer d.regMu.Unlock()

	d.nextToken++
	reg := &registration{token: d.nextToken, observer: o}
	reg.active.Store(true)

	current := *d.observers.Load()
	next := make([]*registration, len(current), len(current)+1)
	copy(next, current)
	next = append(next, reg)
	d.observers.Store(&next)

	logrus.WithFields(logrus.Fields{
		"function":  "Dispatcher.Register",
		"token":     reg.token,
		"observers": len(next),
		"type":      fmt.Sprintf("%T", o),
	}).Info("Observer registered")

	return reg.token, nil
}

// Unregister removes an observer. A delivery already running for it
// completes; queued events not yet started for it are skipped.
func (d *Dispatcher) Unregister(token Token) error {
	d.regMu.Lock()
	defer d.regMu.Unlock()

	current := *d.observers.Load()
	next := make([]*registration, 0, len(current))
	var found *registration
	for _, reg := range current {
		if reg.token == token {
			found = reg
			continue
		}
		next = append(next, reg)
	}
	if found == nil {
		return ErrObserverNotFound
	}
	found.active.Store(false)
	d.observers.Store(&next)

	logrus.WithFields(logrus.Fields{
		"function":  "Dispatcher.Unregister",
		"token":     token,
		"observers": len(next),
	}).Info("Observer unregistered")
	return nil
}

// Publish enqueues ev for every observer registered right now. Without
// observers the event is dropped; there is no replay buffer. Publish never
// blocks on delivery.
func (d *Dispatcher) Publish(ev event.Event) {
	targets := *d.observers.Load()
	if len(targets) == 0 {
		d.dropped.Add(1)
		return
	}

	env := envelope{
		Envelope: Envelope{
			ID:    uuid.NewString(),
			Event: ev,
		},
		targets: targets,
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.dropped.Add(1)
		return
	}
	// sequence and timestamp are taken in queue order
	d.seq++
	env.Seq = d.seq
	env.Produced = d.clock.Now()
	d.queue = append(d.queue, env)
	depth := len(d.queue)
	warn := depth >= d.warnDepth && !d.warned
	if warn {
		d.warned = true
	}
	d.cond.Signal()
	d.mu.Unlock()

	d.published.Add(1)

	if warn {
		logrus.WithFields(logrus.Fields{
			"function":    "Dispatcher.Publish",
			"queue_depth": depth,
			"event":       ev.Kind(),
		}).Warn("Event backlog is growing; an observer is blocking delivery")
	}
}

// ReportDebugError delivers a debug-error event synchronously on the calling
// goroutine, bypassing the queue. It is a no-op unless verbose diagnostics
// are enabled.
func (d *Dispatcher) ReportDebugError(errorCode int, funcName, info string) {
	if !d.verbose.Load() {
		return
	}
	ev := event.DebugError{ErrorCode: errorCode, FuncName: funcName, Info: info}
	env := Envelope{ID: uuid.NewString(), Event: ev}
	d.mu.Lock()
	d.seq++
	env.Seq = d.seq
	env.Produced = d.clock.Now()
	d.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "Dispatcher.ReportDebugError",
		"error_code": errorCode,
		"func_name":  funcName,
		"info":       info,
	}).Warn("API misuse detected")

	for _, reg := range *d.observers.Load() {
		d.deliver(reg, env)
	}
}

// Flush waits until every event published before the call has been
// delivered, or ctx is done.
func (d *Dispatcher) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.queue = append(d.queue, envelope{barrier: barrier})
	d.cond.Signal()
	d.mu.Unlock()

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	depth := len(d.queue)
	d.mu.Unlock()
	return Stats{
		Published:  d.published.Load(),
		Delivered:  d.delivered.Load(),
		Dropped:    d.dropped.Load(),
		QueueDepth: depth,
		Observers:  len(*d.observers.Load()),
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		if d.warned && len(batch) < d.warnDepth/2 {
			d.warned = false
		}
		d.mu.Unlock()

		for i := range batch {
			env := &batch[i]
			if env.barrier != nil {
				close(env.barrier)
				continue
			}
			for _, reg := range env.targets {
				if !reg.active.Load() {
					continue
				}
				d.deliver(reg, env.Envelope)
			}
		}
	}
}

// deliver invokes one observer. A panicking observer is logged and skipped;
// it never takes the sequencer down.
func (d *Dispatcher) deliver(reg *registration, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Dispatcher.deliver",
				"token":    reg.token,
				"event":    env.Event.Kind(),
				"key":      env.Event.Key().String(),
				"panic":    r,
			}).Error("Observer panicked during delivery")
		}
	}()

	if eo, ok := reg.observer.(EnvelopeObserver); ok {
		eo.HandleEnvelope(env)
	}
	env.Event.Deliver(reg.observer)
	d.delivered.Add(1)
}
