package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/summerlabs/notifai/internal/store"
)

// Manager owns run lifecycles. It guarantees at most one active run per job
// name: a second trigger replaces the in-flight run (cancel old, start new)
// rather than queuing a duplicate. The new run resumes from persisted state.
type Manager struct {
	store    *store.Store
	pipeline *Pipeline
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*activeRun

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// RunTicket tracks one triggered run.
type RunTicket struct {
	JobName    string
	Generation int64
	done       chan struct{}
}

// Done is closed when the run reaches a terminal state.
func (t *RunTicket) Done() <-chan struct{} {
	return t.done
}

// NewManager creates a Manager around a pipeline.
func NewManager(st *store.Store, p *Pipeline) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    st,
		pipeline: p,
		logger:   slog.Default(),
		active:   make(map[string]*activeRun),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// WithLogger sets the logger.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	m.logger = logger
	return m
}

// Progress exposes the live progress broadcaster.
func (m *Manager) Progress() *Broadcaster {
	return m.pipeline.Progress()
}

// Trigger starts (or replaces) the run for a job name and returns without
// waiting for completion. The superseded run's cancellation signal is set
// and drained before the replacement starts, so exactly one run is ever
// active per job name.
func (m *Manager) Trigger(jobName string) (*RunTicket, error) {
	m.mu.Lock()
	// Re-check after reacquiring the lock: a concurrent Trigger may have
	// registered a new run while this one was draining the old one.
	for {
		old, ok := m.active[jobName]
		if !ok {
			break
		}
		old.cancel()
		m.mu.Unlock()
		<-old.done
		m.mu.Lock()
	}

	run, err := m.store.StartRun(jobName)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(m.baseCtx)
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	m.active[jobName] = ar
	m.wg.Add(1)
	m.mu.Unlock()

	ticket := &RunTicket{JobName: jobName, Generation: run.Generation, done: ar.done}

	go func() {
		defer m.wg.Done()
		defer close(ar.done)
		defer cancel()
		defer func() {
			m.mu.Lock()
			if m.active[jobName] == ar {
				delete(m.active, jobName)
			}
			m.mu.Unlock()
		}()

		m.pipeline.Progress().Reset()
		start := time.Now()
		m.logger.Info("ingestion run started", "job", jobName, "generation", run.Generation)

		if err := m.pipeline.execute(runCtx, run); err != nil {
			m.logger.Error("ingestion run ended with error",
				"job", jobName,
				"generation", run.Generation,
				"duration", time.Since(start),
				"error", err)
			return
		}

		duration := time.Since(start)
		rate := int64(0)
		if duration > 0 {
			rate = run.Total * int64(time.Second) / int64(duration)
		}
		m.logger.Info("ingestion run completed",
			"job", jobName,
			"generation", run.Generation,
			"messages", run.Total,
			"duration", duration,
			"rate_per_sec", rate)
	}()

	return ticket, nil
}

// Run triggers a run and blocks until it reaches a terminal state, then
// returns the persisted run record.
func (m *Manager) Run(ctx context.Context, jobName string) (*store.IngestRun, error) {
	ticket, err := m.Trigger(jobName)
	if err != nil {
		return nil, err
	}

	select {
	case <-ticket.Done():
	case <-ctx.Done():
		m.Cancel(jobName)
		<-ticket.Done()
	}

	return m.store.LatestRun(jobName)
}

// Cancel cooperatively cancels the active run for a job name, if any.
// Already-committed batches stay committed.
func (m *Manager) Cancel(jobName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ar, ok := m.active[jobName]; ok {
		ar.cancel()
		return true
	}
	return false
}

// Running reports whether a run is currently active for the job name.
func (m *Manager) Running(jobName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[jobName]
	return ok
}

// Status derives the durable wire-contract snapshot for a job from its
// latest persisted run, so the contract survives process restarts. A job
// that has never run reports LOADING with zero counts.
func (m *Manager) Status(jobName string) (Snapshot, error) {
	run, err := m.store.LatestRun(jobName)
	if err != nil {
		return Snapshot{}, err
	}
	if run == nil {
		return Snapshot{Status: StatusLoading}, nil
	}

	snap := Snapshot{Processed: run.Processed, Total: run.Total}
	switch run.Status {
	case store.RunSucceeded:
		snap.Status = StatusSuccess
	case store.RunFailed, store.RunCancelled:
		snap.Status = StatusError
		if run.ErrorMessage.Valid {
			snap.ErrorMessage = run.ErrorMessage.String
		} else {
			snap.ErrorMessage = KindUnknown.UserMessage()
		}
	default:
		snap.Status = StatusLoading
	}
	return snap, nil
}

// Shutdown cancels every active run and waits for them to finish.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}
