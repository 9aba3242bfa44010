package tracker

import (
	"context"
	"time"
)

// Run drives the dispatcher until ctx is cancelled. Messages are only ever
// consumed here, so handlers and continuations run strictly one at a time in
// arrival order.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.opts.TickInterval)
	defer ticker.Stop()

	t.logger.Info().
		Dur("tick", t.opts.TickInterval).
		Int("batch", t.opts.DispatchBatch).
		Msg("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			t.guard.Reset()
			t.logger.Info().Msg("dispatcher stopped")
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Tick drains up to the batch limit of queued messages in FIFO order, then
// fires the host refresh signal once. Messages beyond the limit stay queued
// for the next tick. Returns the number of messages handled.
func (t *Tracker) Tick() int {
	n := 0
	for n < t.opts.DispatchBatch {
		select {
		case msg := <-t.queue:
			t.handle(msg)
			n++
		default:
			return t.finishTick(n)
		}
	}
	return t.finishTick(n)
}

func (t *Tracker) finishTick(n int) int {
	if t.metrics != nil {
		t.metrics.ObserveBatch(n)
		t.metrics.SetQueueDepth(len(t.queue))
	}
	t.refresh()
	return n
}

func (t *Tracker) handle(msg Message) {
	switch msg.Kind {
	case KindClientsFetched:
		t.handleClientsFetched(msg)
	case KindProjectsFetched:
		t.handleProjectsFetched(msg)
	case KindClientCreated:
		t.handleClientCreated(msg)
	case KindProjectCreated:
		t.handleProjectCreated(msg)
	case KindTimerStarted:
		t.handleTimerStarted(msg)
	case KindTimerStopped:
		t.handleTimerStopped(msg)
	case KindNoActiveTimer:
		t.handleNoActiveTimer(msg)
	case KindCurrentTimer:
		t.handleCurrentTimer(msg)
	case KindProjectSummary:
		t.handleProjectSummary(msg)
	case KindUserInfo:
		t.handleUserInfo(msg)
	case KindError:
		t.handleError(msg)
	default:
		t.logger.Warn().Str("kind", string(msg.Kind)).Msg("unknown message kind dropped")
	}

	if t.metrics != nil {
		status := "ok"
		if msg.Kind == KindError {
			status = "error"
		}
		t.metrics.RecordOperation(string(msg.Kind), status)
	}

	if msg.Then != nil {
		t.runContinuation(msg)
	}
}

// runContinuation isolates continuation panics so one bad callback cannot
// take the dispatcher down.
func (t *Tracker) runContinuation(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Str("kind", string(msg.Kind)).Str("op_id", msg.OpID).
				Interface("panic", r).Msg("continuation panicked")
		}
	}()
	msg.Then(msg)
}
