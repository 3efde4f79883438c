// Package video is the public entry point for render submissions and status
// queries. It composes path resolution, the status oracle, input staging and
// the render supervisor into the idempotent submission protocol.
package video

import (
	"context"

	"promoreel/internal/job"
	"promoreel/internal/pkg/logger"
	"promoreel/internal/render"
	"promoreel/internal/staging"
)

type Service struct {
	dataRoot      string
	publicBaseURL string
	stager        *staging.Stager
	supervisor    *render.Supervisor
	log           *logger.Logger
}

type Deps struct {
	DataRoot      string
	PublicBaseURL string
	Stager        *staging.Stager
	Supervisor    *render.Supervisor
	Log           *logger.Logger
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Service{
		dataRoot:      d.DataRoot,
		publicBaseURL: d.PublicBaseURL,
		stager:        d.Stager,
		supervisor:    d.Supervisor,
		log:           log.WithComponent("video"),
	}
}

// Status reports the job's current lifecycle state, derived from disk.
func (s *Service) Status(productID string) (job.Snapshot, error) {
	if err := job.ValidateID(productID); err != nil {
		return job.Snapshot{}, err
	}
	p := job.PathsFor(s.dataRoot, productID)
	return job.Resolve(p, s.publicBaseURL), nil
}

// ArtifactPath resolves the on-disk location of the completed artifact for
// the file-serving handler.
func (s *Service) ArtifactPath(productID string) (string, error) {
	if err := job.ValidateID(productID); err != nil {
		return "", err
	}
	return job.PathsFor(s.dataRoot, productID).Output, nil
}

// Submit is the idempotent submission entry point. Re-POSTing a job that is
// already done or running returns the current state without touching inputs;
// otherwise inputs are staged and the render supervisor is started. The
// status check and staging are not covered by the render lock, so two racing
// first-time submissions may both stage inputs, but the lock inside the
// supervisor still guarantees a single renderer process.
func (s *Service) Submit(ctx context.Context, productID string, up staging.Uploads) (job.Snapshot, error) {
	if err := job.ValidateID(productID); err != nil {
		return job.Snapshot{}, err
	}
	log := s.log.WithProductID(productID)

	p := job.PathsFor(s.dataRoot, productID)
	if err := p.EnsureDirs(); err != nil {
		return job.Snapshot{}, err
	}

	snap := job.Resolve(p, s.publicBaseURL)
	if snap.Status == job.StatusDone || snap.Status == job.StatusRunning {
		log.Debug("duplicate submission short-circuited", "status", string(snap.Status))
		return snap, nil
	}

	if err := s.stager.Stage(ctx, p, up); err != nil {
		return job.Snapshot{}, err
	}

	res, err := s.supervisor.Start(p)
	if err != nil {
		return job.Snapshot{}, err
	}
	log.Info("render submission accepted", "started", res.Started)

	// Re-derive rather than trusting the start result: a very fast render
	// may already be done by now.
	return job.Resolve(p, s.publicBaseURL), nil
}
