package app

import (
	"context"
	"testing"
	"time"

	"github.com/stockanalysis/job-engine/internal/domain"
)

type fakeJobRepo struct {
	jobs      []domain.Job
	failCalls []struct {
		id  string
		msg string
	}
	listErr error
	failErr error
}

func (r *fakeJobRepo) Create(context.Context, domain.Job) (string, error)          { return "", nil }
func (r *fakeJobRepo) Start(context.Context, string) error                         { return nil }
func (r *fakeJobRepo) RecordProgress(context.Context, string, int, string, bool, string) error {
	return nil
}
func (r *fakeJobRepo) Finalize(context.Context, string, bool) error { return nil }
func (r *fakeJobRepo) Fail(_ context.Context, id string, msg string) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.failCalls = append(r.failCalls, struct {
		id  string
		msg string
	}{id: id, msg: msg})
	return nil
}
func (r *fakeJobRepo) RequestCancel(context.Context, string) error { return nil }
func (r *fakeJobRepo) Status(context.Context, string) (domain.Job, error) {
	return domain.Job{}, nil
}
func (r *fakeJobRepo) ListWithFilters(context.Context, int, int, string, string) ([]domain.Job, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.jobs, nil
}
func (r *fakeJobRepo) CountWithFilters(context.Context, string, string) (int64, error) {
	return int64(len(r.jobs)), nil
}
func (r *fakeJobRepo) CountByStatus(context.Context, domain.JobStatus) (int64, error) {
	return 0, nil
}

var _ domain.JobRepository = (*fakeJobRepo)(nil)

func TestNewStuckJobSweeperDefaults(t *testing.T) {
	repo := &fakeJobRepo{}
	s := NewStuckJobSweeper(repo, 0, 0)
	if s == nil {
		t.Fatalf("expected non-nil sweeper")
	}
	if s.maxProcessingAge <= 0 {
		t.Fatalf("maxProcessingAge should be set to default, got %v", s.maxProcessingAge)
	}
	if s.interval <= 0 {
		t.Fatalf("interval should be set to default, got %v", s.interval)
	}
}

func TestNewStuckJobSweeperNilRepo(t *testing.T) {
	if sweeper := NewStuckJobSweeper(nil, time.Minute, time.Minute); sweeper != nil {
		t.Fatalf("expected nil sweeper when repo is nil")
	}
}

func TestStuckJobSweeperSweepOnceMarksOldJobsFailed(t *testing.T) {
	now := time.Now()
	repo := &fakeJobRepo{
		jobs: []domain.Job{
			{ID: "old", Status: domain.JobProcessing, UpdatedAt: now.Add(-10 * time.Minute)},
			{ID: "recent", Status: domain.JobProcessing, UpdatedAt: now.Add(-1 * time.Minute)},
		},
	}
	s := &StuckJobSweeper{
		jobs:             repo,
		maxProcessingAge: 5 * time.Minute,
		interval:         time.Minute,
	}

	s.sweepOnce(context.Background())

	if len(repo.failCalls) != 1 {
		t.Fatalf("expected 1 fail call, got %d", len(repo.failCalls))
	}
	call := repo.failCalls[0]
	if call.id != "old" {
		t.Fatalf("expected job 'old' to be marked failed, got %q", call.id)
	}
	if call.msg == "" {
		t.Fatalf("expected non-empty failure message")
	}
}

func TestStuckJobSweeperRunStopsOnContextDone(t *testing.T) {
	repo := &fakeJobRepo{}
	s := NewStuckJobSweeper(repo, time.Minute, 10*time.Millisecond)
	if s == nil {
		t.Fatalf("expected non-nil sweeper")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(ch)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-ch:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("Run did not exit after context cancellation")
	}
}
