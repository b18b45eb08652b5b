// Package syncer pushes authenticated client state to the session store.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/observability"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultPushTimeout = 10 * time.Second
)

// Trigger labels used in metrics.
const (
	TriggerMutation  = "mutation"
	TriggerCoalesced = "coalesced"
	TriggerInterval  = "interval"
	TriggerManual    = "manual"
)

var (
	ErrStopped   = errors.New("scheduler stopped")
	ErrNoSession = errors.New("subject has no authenticated session")
)

// State is the full client state pushed on every sync.
type State struct {
	Cart     domain.Cart
	Wishlist []domain.WishlistEntry
	// Version is set by the source and changes whenever the state does.
	Version uint64
}

// StateSource returns the current state of a subject. ok is false when the
// subject no longer has an authenticated session.
type StateSource interface {
	SyncState(subjectID string) (state State, ok bool)
}

// Pusher writes a full state to the session store, replacing what is there.
type Pusher interface {
	Push(ctx context.Context, subjectID string, state State) error
}

type subjectState struct {
	busy  bool
	dirty bool
	// idle is closed when the in-flight push finishes.
	idle chan struct{}
}

func (st *subjectState) acquire() {
	st.busy = true
	st.idle = make(chan struct{})
}

func (st *subjectState) release() {
	st.busy = false
	close(st.idle)
}

// Scheduler runs at most one push per subject at a time. Triggers that arrive
// while a push is in flight are coalesced into a single follow-up push.
type Scheduler struct {
	source      StateSource
	pusher      Pusher
	interval    time.Duration
	pushTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	subjects map[string]*subjectState
	stopped  bool
	started  bool
}

type Option func(*Scheduler)

// WithInterval sets the safety-net period. Zero disables the ticker.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

func WithPushTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.pushTimeout = d
	}
}

func New(source StateSource, pusher Pusher, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		source:      source,
		pusher:      pusher,
		interval:    DefaultInterval,
		pushTimeout: DefaultPushTimeout,
		ctx:         ctx,
		cancel:      cancel,
		subjects:    make(map[string]*subjectState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the safety-net ticker. It is a no-op when already started or stopped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped || s.interval <= 0 {
		return
	}
	s.started = true

	s.wg.Add(1)
	go s.tickLoop()
}

// Trigger schedules a push of the subject's full state and returns immediately.
func (s *Scheduler) Trigger(subjectID string) {
	s.trigger(subjectID, TriggerMutation)
}

// Forget stops tracking a subject. An in-flight push still completes.
func (s *Scheduler) Forget(subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.subjects[subjectID]; ok && !st.busy {
		delete(s.subjects, subjectID)
	}
}

// Stop cancels the ticker and any in-flight push, then waits for workers to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Tracked reports the number of subjects known to the scheduler.
func (s *Scheduler) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subjects)
}

// PushNow pushes the subject's state and waits for the result. It first waits
// for any in-flight push of the same subject, so the one-push-per-subject rule
// holds for manual pushes too.
func (s *Scheduler) PushNow(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return ErrNoSession
	}

	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return ErrStopped
		}
		st := s.track(subjectID)
		if !st.busy {
			st.acquire()
			st.dirty = false
			s.mu.Unlock()

			err := s.push(ctx, subjectID, TriggerManual)
			s.finish(subjectID, st)
			return err
		}
		idle := st.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// track returns the state of subjectID, creating it. Callers hold s.mu.
func (s *Scheduler) track(subjectID string) *subjectState {
	st, ok := s.subjects[subjectID]
	if !ok {
		st = &subjectState{}
		s.subjects[subjectID] = st
	}
	return st
}

func (s *Scheduler) trigger(subjectID, trigger string) {
	if subjectID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	st := s.track(subjectID)
	if st.busy {
		st.dirty = true
		return
	}
	st.acquire()

	s.wg.Add(1)
	go s.run(subjectID, st, trigger)
}

func (s *Scheduler) run(subjectID string, st *subjectState, trigger string) {
	defer s.wg.Done()

	for {
		if err := s.push(s.ctx, subjectID, trigger); err != nil && s.ctx.Err() == nil && !errors.Is(err, ErrNoSession) {
			observability.FromContext(observability.WithSubject(s.ctx, subjectID)).Warn("background sync failed",
				slog.String("trigger", trigger),
				slog.String("error", err.Error()),
			)
		}

		s.mu.Lock()
		if st.dirty && !s.stopped {
			st.dirty = false
			s.mu.Unlock()
			trigger = TriggerCoalesced
			continue
		}
		st.dirty = false
		st.release()
		s.mu.Unlock()
		return
	}
}

// finish ends a manual push. A trigger that arrived meanwhile gets its
// follow-up push in the background.
func (s *Scheduler) finish(subjectID string, st *subjectState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.dirty && !s.stopped {
		st.dirty = false
		s.wg.Add(1)
		go s.run(subjectID, st, TriggerCoalesced)
		return
	}
	st.release()
}

func (s *Scheduler) push(ctx context.Context, subjectID, trigger string) error {
	state, ok := s.source.SyncState(subjectID)
	if !ok {
		s.mu.Lock()
		if st, exists := s.subjects[subjectID]; exists {
			st.dirty = false
			delete(s.subjects, subjectID)
		}
		s.mu.Unlock()
		return ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()
	ctx = observability.WithSubject(ctx, subjectID)

	start := time.Now()
	err := s.pusher.Push(ctx, subjectID, state)
	observability.SyncPushDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.SyncPushes.WithLabelValues(trigger, "error").Inc()
		return err
	}
	observability.SyncPushes.WithLabelValues(trigger, "ok").Inc()
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.snapshotSubjects() {
				s.trigger(id, TriggerInterval)
			}
		}
	}
}

func (s *Scheduler) snapshotSubjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.subjects))
	for id := range s.subjects {
		ids = append(ids, id)
	}
	return ids
}
