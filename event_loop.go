package boundplot

import (
	"context"
	"errors"
	"runtime/trace"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrEventLoopStopped is returned by Submit once the loop has exited.
var ErrEventLoopStopped = errors.New("event loop stopped")

type commandRequest struct {
	cmd  Command
	done chan<- error
}

// liveChannel is a registered client channel. drop is called once if the
// channel overflows and is removed from the live update list.
type liveChannel struct {
	c    chan<- WSMessage
	drop func()
}

// EventLoop owns the ControlPanel (and through it the Figure). Commands from
// every connected client are queued and applied one at a time on the loop
// goroutine, each running to completion before the next one starts. The
// resulting messages are broadcast to all registered channels.
type EventLoop struct {
	panel *ControlPanel

	commands chan commandRequest
	stopped  chan struct{}

	// Guards channelsForLiveUpdate and the figure. The loop goroutine holds it
	// while applying a command and broadcasting the result.
	mutex sync.Mutex
	wg    sync.WaitGroup

	// These are channels from open websockets where we are sending updates to.
	// Sends never block: a channel whose buffer is full is dropped.
	channelsForLiveUpdate []liveChannel

	// Just for tracking how many commands were applied when the loop stops.
	numCommandsHandled int

	logger logrus.FieldLogger
}

func NewEventLoop(panel *ControlPanel) *EventLoop {
	return &EventLoop{
		panel: panel,

		commands: make(chan commandRequest),
		stopped:  make(chan struct{}),

		mutex:                 sync.Mutex{},
		channelsForLiveUpdate: make([]liveChannel, 0),
		logger:                logrus.WithField("tag", "EventLoop"),
	}
}

func (l *EventLoop) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(l.stopped)

		err := l.run(ctx)

		logger := l.logger.WithField("numCommandsHandled", l.numCommandsHandled)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger = logger.WithError(err)
		}
		logger.Info("event loop stopped")
	}()
}

func (l *EventLoop) Wait() {
	l.wg.Wait()
}

// Submit queues cmd and waits until it has been applied. The returned error is
// the one produced by ControlPanel.Handle; an InteractiveInputError has
// already been reported to every client when Submit returns.
func (l *EventLoop) Submit(ctx context.Context, cmd Command) error {
	done := make(chan error, 1)

	select {
	case l.commands <- commandRequest{cmd: cmd, done: done}:
	case <-l.stopped:
		return ErrEventLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register a new channel. Called from the HTTP server when a new websocket
// connection is initiated.
//
// - ctx: is the HTTP call context.
// - c: is the channel to send messages on. It must be buffered and hold at least the snapshot.
// - drop: is called (with the mutex held) if c later fills up. c is then no longer sent to and the client should disconnect. May be nil.
//
// The full figure is pushed to c before it is added to the live update list.
// Both happen under the mutex, so no update can slip in between the snapshot
// and the first live message.
func (l *EventLoop) RegisterChannel(ctx context.Context, c chan<- WSMessage, drop func()) {
	traceCtx, task := trace.NewTask(ctx, "RegisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", l.mutex.Lock)
	defer l.mutex.Unlock()

	trace.WithRegion(traceCtx, "pushSnapshotToChannel", func() {
		for _, msg := range l.panel.SnapshotMessages() {
			c <- msg
		}
	})

	l.channelsForLiveUpdate = append(l.channelsForLiveUpdate, liveChannel{c: c, drop: drop})

	l.logger.WithFields(logrus.Fields{
		"newChannel": c,
		"channels":   len(l.channelsForLiveUpdate),
	}).Info("registered channel")
}

// Deregister a channel. Called when a websocket client disconnects. Note: the
// channel shouldn't be closed until this method returns, as it may cause
// panics otherwise.
func (l *EventLoop) DeregisterChannel(ctx context.Context, c chan<- WSMessage) {
	traceCtx, task := trace.NewTask(ctx, "DeregisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", l.mutex.Lock)
	defer l.mutex.Unlock()

	l.channelsForLiveUpdate = Filter(l.channelsForLiveUpdate, func(channel liveChannel) bool {
		return channel.c != c
	})

	l.logger.WithFields(logrus.Fields{
		"removedChannel": c,
		"channels":       len(l.channelsForLiveUpdate),
	}).Info("deregistered channel")
}

// Snapshot returns a copy of the current figure that is safe to use from any
// goroutine.
func (l *EventLoop) Snapshot() *Figure {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.panel.Figure().Clone()
}

func (l *EventLoop) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-l.commands:
			req.done <- l.handle(ctx, req.cmd)
		}
	}
}

func (l *EventLoop) handle(ctx context.Context, cmd Command) error {
	traceCtx, task := trace.NewTask(ctx, "EventLoopCommand")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", l.mutex.Lock)
	defer l.mutex.Unlock()

	var messages []WSMessage
	var err error
	trace.WithRegion(traceCtx, "Handle", func() {
		messages, err = l.panel.Handle(cmd)
	})

	logger := l.logger.WithFields(logrus.Fields{
		"action": cmd.Action,
		"curve":  cmd.Curve,
		"param":  cmd.Param,
	})

	if err != nil {
		logger.WithError(err).Warn("command rejected")
	} else {
		l.numCommandsHandled++
		logger.Debug("command applied")
	}

	trace.WithRegion(traceCtx, "Broadcast", func() {
		l.channelsForLiveUpdate = Filter(l.channelsForLiveUpdate, func(channel liveChannel) bool {
			return l.broadcast(channel, messages)
		})
	})

	return err
}

// broadcast sends messages to channel without blocking and reports whether the
// channel keeps receiving live updates.
func (l *EventLoop) broadcast(channel liveChannel, messages []WSMessage) bool {
	for _, msg := range messages {
		select {
		case channel.c <- msg:
		default:
			l.logger.WithField("channel", channel.c).Warn("channel full, dropping client")
			if channel.drop != nil {
				channel.drop()
			}
			return false
		}
	}
	return true
}
