// Package scheduler provides cron-based scheduling for periodic ingestion runs.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/summerlabs/notifai/internal/config"
)

// TriggerFunc starts (or replaces) the ingestion run for a job name.
// The manager's replace semantics make repeated triggers safe.
type TriggerFunc func(jobName string) error

// JobStatus represents the schedule state of one job.
type JobStatus struct {
	Name      string    `json:"name"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run,omitempty"`
	Schedule  string    `json:"schedule"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler manages cron-based ingestion scheduling.
type Scheduler struct {
	cron    *cron.Cron
	trigger TriggerFunc
	logger  *slog.Logger

	mu        sync.RWMutex
	jobs      map[string]cron.EntryID
	schedules map[string]string
	lastRun   map[string]time.Time
	lastErr   map[string]error
}

// New creates a Scheduler with the given trigger callback.
func New(trigger TriggerFunc) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
		))),
		trigger:   trigger,
		logger:    slog.Default(),
		jobs:      make(map[string]cron.EntryID),
		schedules: make(map[string]string),
		lastRun:   make(map[string]time.Time),
		lastErr:   make(map[string]error),
	}
}

// WithLogger sets the logger for the scheduler.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// AddJob schedules ingestion for a job name using the given cron expression.
func (s *Scheduler) AddJob(name, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobs[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		delete(s.schedules, name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.runJob(name)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.jobs[name] = entryID
	s.schedules[name] = cronExpr
	s.logger.Info("scheduled ingestion",
		"job", name,
		"schedule", cronExpr,
		"next_run", s.cron.Entry(entryID).Next)

	return nil
}

// AddJobsFromConfig adds all enabled jobs from the config.
// Returns the number of jobs scheduled and any errors encountered.
func (s *Scheduler) AddJobsFromConfig(cfg *config.Config) (int, []error) {
	var errors []error
	scheduled := 0

	for _, j := range cfg.ScheduledJobs() {
		if err := s.AddJob(j.Name, j.Schedule); err != nil {
			errors = append(errors, fmt.Errorf("%s: %w", j.Name, err))
		} else {
			scheduled++
		}
	}

	return scheduled, errors
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop stops the cron loop. In-flight runs belong to the pipeline manager
// and are shut down there, not here.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// runJob fires the trigger for one job.
func (s *Scheduler) runJob(name string) {
	s.logger.Info("starting scheduled ingestion", "job", name)

	err := s.trigger(name)

	s.mu.Lock()
	if err != nil {
		s.lastErr[name] = err
		s.logger.Error("scheduled ingestion trigger failed", "job", name, "error", err)
	} else {
		s.lastRun[name] = time.Now()
		s.lastErr[name] = nil
	}
	s.mu.Unlock()
}

// Status returns the current status of all scheduled jobs.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var statuses []JobStatus
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		status := JobStatus{
			Name:     name,
			NextRun:  entry.Next,
			LastRun:  s.lastRun[name],
			Schedule: s.schedules[name],
		}
		if err := s.lastErr[name]; err != nil {
			status.LastError = err.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// ValidateCronExpr validates a cron expression without scheduling anything.
func ValidateCronExpr(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
