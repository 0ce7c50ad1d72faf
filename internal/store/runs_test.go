package store

import "testing"

func TestStartRunSupersedesInFlight(t *testing.T) {
	s := newTestStore(t)

	first, err := s.StartRun("sms-ingest")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first.Generation != 1 {
		t.Errorf("first generation = %d, want 1", first.Generation)
	}

	second, err := s.StartRun("sms-ingest")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.Generation != 2 {
		t.Errorf("second generation = %d, want 2", second.Generation)
	}
	if second.RunToken == first.RunToken {
		t.Error("run tokens must be unique per run")
	}

	// The first run was closed out as cancelled in the same transaction.
	var status, errKind string
	err = s.db.QueryRow(`SELECT status, error_kind FROM ingest_runs WHERE id = ?`, first.ID).
		Scan(&status, &errKind)
	if err != nil {
		t.Fatalf("read first run: %v", err)
	}
	if status != string(RunCancelled) || errKind != "CANCELLED" {
		t.Errorf("superseded run = (%s, %s), want (cancelled, CANCELLED)", status, errKind)
	}

	var active int64
	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM ingest_runs
		WHERE job_name = 'sms-ingest' AND status IN ('running', 'retrying')
	`).Scan(&active)
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if active != 1 {
		t.Errorf("active runs = %d, want exactly 1", active)
	}
}

func TestGenerationsAreScopedPerJob(t *testing.T) {
	s := newTestStore(t)

	a, err := s.StartRun("job-a")
	if err != nil {
		t.Fatalf("start a: %v", err)
	}
	b, err := s.StartRun("job-b")
	if err != nil {
		t.Fatalf("start b: %v", err)
	}
	if a.Generation != 1 || b.Generation != 1 {
		t.Errorf("generations = %d, %d, want 1, 1", a.Generation, b.Generation)
	}

	// Starting job-b again leaves job-a's run untouched.
	if _, err := s.StartRun("job-b"); err != nil {
		t.Fatalf("restart b: %v", err)
	}
	latestA, err := s.LatestRun("job-a")
	if err != nil {
		t.Fatalf("latest a: %v", err)
	}
	if latestA.Status != RunRunning {
		t.Errorf("job-a status = %s, want running", latestA.Status)
	}

	gen, err := s.CurrentGeneration("job-b")
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	if gen != 2 {
		t.Errorf("job-b generation = %d, want 2", gen)
	}
}

func TestRunLifecycleTransitions(t *testing.T) {
	s := newTestStore(t)

	run, err := s.StartRun("sms-ingest")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.UpdateRunProgress(run.ID, 40, 100); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := s.SetRunStatus(run.ID, RunRetrying); err != nil {
		t.Fatalf("retrying: %v", err)
	}

	latest, err := s.LatestRun("sms-ingest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Status != RunRetrying || latest.Processed != 40 || latest.Total != 100 {
		t.Errorf("checkpoint = %s %d/%d, want retrying 40/100", latest.Status, latest.Processed, latest.Total)
	}
	if latest.Status.Terminal() {
		t.Error("retrying must not be terminal")
	}

	if err := s.FailRun(run.ID, "PERMISSION_DENIED", "SMS access permission is required"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	latest, err = s.LatestRun("sms-ingest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Status != RunFailed {
		t.Errorf("status = %s, want failed", latest.Status)
	}
	if !latest.ErrorMessage.Valid || latest.ErrorMessage.String != "SMS access permission is required" {
		t.Errorf("error message = %+v", latest.ErrorMessage)
	}
	if !latest.CompletedAt.Valid {
		t.Error("terminal run missing completed_at")
	}
	if !latest.Status.Terminal() {
		t.Error("failed must be terminal")
	}
}

func TestCancelRunOnlyAffectsNonTerminal(t *testing.T) {
	s := newTestStore(t)

	run, err := s.StartRun("sms-ingest")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.CompleteRun(run.ID, 10, 10); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Cancelling after success is a no-op, not a regression to cancelled.
	if err := s.CancelRun(run.ID, "SMS processing cancelled"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	latest, err := s.LatestRun("sms-ingest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Status != RunSucceeded {
		t.Errorf("status = %s, want succeeded to stick", latest.Status)
	}
	if latest.Processed != 10 || latest.Total != 10 {
		t.Errorf("terminal counts = %d/%d, want 10/10", latest.Processed, latest.Total)
	}
}

func TestRunProgressClampedToTotal(t *testing.T) {
	s := newTestStore(t)

	run, err := s.StartRun("sms-ingest")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.UpdateRunProgress(run.ID, 12, 10); err != nil {
		t.Fatalf("update: %v", err)
	}

	latest, err := s.LatestRun("sms-ingest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Processed != 10 || latest.Total != 10 {
		t.Errorf("checkpoint = %d/%d, want clamped to 10/10", latest.Processed, latest.Total)
	}
}

func TestLatestRunForUnknownJob(t *testing.T) {
	s := newTestStore(t)

	run, err := s.LatestRun("never-ran")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil run, got %+v", run)
	}

	gen, err := s.CurrentGeneration("never-ran")
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	if gen != 0 {
		t.Errorf("generation = %d, want 0", gen)
	}
}
