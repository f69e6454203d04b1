package bot

import (
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/transport/room"
)

// Actor carries out a bot's request as if it came from a client
type Actor interface {
	Act(conn room.Connection, event string, payload any)
}

// Options tunes how quickly a bot reacts
type Options struct {
	ReadyDelay time.Duration
	PlayDelay  time.Duration
	SlapDelay  time.Duration
	VoteDelay  time.Duration
	Logger     logrus.FieldLogger
}

// DefaultOptions returns reaction delays that feel human at the table
func DefaultOptions() Options {
	return Options{
		ReadyDelay: 300 * time.Millisecond,
		PlayDelay:  700 * time.Millisecond,
		SlapDelay:  450 * time.Millisecond,
		VoteDelay:  time.Second,
	}
}

func (o Options) delay(intent Intent) time.Duration {
	switch intent {
	case IntentReady:
		return o.ReadyDelay
	case IntentPlay:
		return o.PlayDelay
	case IntentSlap:
		return o.SlapDelay
	case IntentVote:
		return o.VoteDelay
	}
	return o.PlayDelay
}

// Driver attaches a Brain to a synthetic Connection. It listens for state
// snapshots and schedules its reactions; nothing runs inside the broadcast that
// delivered the snapshot.
type Driver struct {
	conn   *room.Synthetic
	actor  Actor
	opts   Options
	logger logrus.FieldLogger

	mu      sync.Mutex
	brain   *Brain
	last    engine.GameView
	pending map[Intent]*time.Timer
	closed  bool
}

// NewDriver creates a bot with its own synthetic connection
func NewDriver(id string, actor Actor, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	d := &Driver{
		conn:    room.NewSynthetic(id),
		actor:   actor,
		opts:    opts,
		logger:  logger.WithField("conn", id),
		brain:   NewBrain(id),
		pending: make(map[Intent]*time.Timer),
	}
	d.conn.On(engine.NotifyState, d.onState)
	return d
}

func (d *Driver) ID() string            { return d.conn.ID() }
func (d *Driver) Conn() *room.Synthetic { return d.conn }

// Pending reports whether a reaction is scheduled for intent
func (d *Driver) Pending(intent Intent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[intent] != nil
}

// Close stops every scheduled reaction and the connection
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for intent, timer := range d.pending {
		timer.Stop()
		delete(d.pending, intent)
	}
	d.conn.Close()
}

func (d *Driver) onState(payload any) {
	view, ok := payload.(engine.GameView)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.last = view
	for _, intent := range d.brain.Decide(view) {
		if d.pending[intent] != nil {
			continue
		}
		d.pending[intent] = time.AfterFunc(d.opts.delay(intent), func() { d.fire(intent) })
	}
}

// fire acts only if the latest snapshot still calls for the intent
func (d *Driver) fire(intent Intent) {
	d.mu.Lock()
	delete(d.pending, intent)
	if d.closed || !slices.Contains(d.brain.Decide(d.last), intent) {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	event, payload := intent.Request()
	d.logger.WithField("event", event).Debug("Bot acting")
	d.actor.Act(d.conn, event, payload)
}
