package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func jobID(j core.Job) string         { return j.ID }
func setJobID(j *core.Job, id string) { j.ID = id }

// ListJobs returns the jobs in insertion order.
func (s *Store) ListJobs() []core.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snap.Jobs)
}

// UpsertJob creates the job when it has no id, otherwise replaces the job
// with that id. Updating an unknown id fails with core.ErrNotFound.
func (s *Store) UpsertJob(ctx context.Context, job core.Job) (saved core.Job, err error) {
	op := log.OpCreate
	if job.ID != "" {
		op = log.OpUpdate
	}
	defer func() { s.observe(ctx, EntityJob, op, cmp.Or(saved.ID, job.ID), err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.Job{}, core.ErrClosed
	}

	job.ClientName = strings.TrimSpace(job.ClientName)
	job.Vendor = strings.TrimSpace(job.Vendor)
	if err := job.Validate(); err != nil {
		return core.Job{}, err
	}

	jobs, saved, err := upsertByID(s.snap.Jobs, job, jobID, setJobID, s.newID)
	if err != nil {
		return core.Job{}, fmt.Errorf("job %q: %w", job.ID, err)
	}
	next := s.snap
	next.Jobs = jobs
	if err := s.commit(ctx, next, storage.KeyJobs); err != nil {
		return core.Job{}, err
	}
	return saved, nil
}

// DeleteJob removes the job with id. Deleting an unknown id is a no-op.
func (s *Store) DeleteJob(ctx context.Context, id string) (err error) {
	defer func() { s.observe(ctx, EntityJob, log.OpDelete, id, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.ErrClosed
	}

	jobs, removed := deleteByKey(s.snap.Jobs, jobID, id)
	if !removed {
		return nil
	}
	next := s.snap
	next.Jobs = jobs
	return s.commit(ctx, next, storage.KeyJobs)
}
