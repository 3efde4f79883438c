// Package render supervises the external renderer process: idempotent start
// under the per-product lock, asynchronous completion handling, and the
// durable status transition when the process terminates.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"promoreel/internal/job"
	"promoreel/internal/pkg/logger"
	"promoreel/internal/ports"
)

// errorRecordLimit caps the diagnostic text persisted for a failed render,
// mirroring the read-side cap in the status oracle.
const errorRecordLimit = 2000

type StartResult struct {
	Started bool
	Status  job.Status
}

type Supervisor struct {
	command       []string
	assetsDir     string
	publicBaseURL string
	mirror        ports.ArtifactStore
	log           *logger.Logger
}

type Deps struct {
	// Command is the renderer argv prefix; job flags are appended.
	Command       []string
	AssetsDir     string
	PublicBaseURL string
	// Mirror is optional; nil disables artifact mirroring.
	Mirror ports.ArtifactStore
	Log    *logger.Logger
}

func NewSupervisor(d Deps) *Supervisor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Supervisor{
		command:       d.Command,
		assetsDir:     d.AssetsDir,
		publicBaseURL: d.PublicBaseURL,
		mirror:        d.Mirror,
		log:           log.WithComponent("render"),
	}
}

// Start is the idempotent start primitive. It never blocks on the render:
// when it wins the lock it launches the renderer in the background and
// returns immediately; callers observe completion by polling the status
// oracle.
func (s *Supervisor) Start(p job.Paths) (StartResult, error) {
	if _, err := os.Stat(p.Output); err == nil {
		return StartResult{Started: false, Status: job.StatusDone}, nil
	}
	if job.Locked(p) {
		return StartResult{Started: false, Status: job.StatusRunning}, nil
	}

	lock, err := job.TryAcquire(p)
	if errors.Is(err, job.ErrLocked) {
		// Lost the race to a concurrent submission; that one owns the render.
		return StartResult{Started: false, Status: job.StatusRunning}, nil
	}
	if err != nil {
		return StartResult{}, err
	}

	if err := job.WriteRecord(p, job.Record{Status: job.StatusRunning, StartedAt: time.Now().UTC()}); err != nil {
		_ = lock.Release()
		return StartResult{}, err
	}
	if err := job.ClearErrorRecord(p); err != nil {
		_ = lock.Release()
		return StartResult{}, err
	}

	go s.run(p, lock)

	return StartResult{Started: true, Status: job.StatusRunning}, nil
}

// run executes the renderer and performs the terminal status transition.
// The lock is released by the deferred guard, so it is dropped exactly once
// no matter which branch terminates the attempt.
func (s *Supervisor) run(p job.Paths, lock job.Lock) {
	log := s.log.WithProductID(p.ProductID)
	defer func() {
		if err := lock.Release(); err != nil {
			log.Error("failed to release render lock", "error", err.Error())
		}
	}()

	start := time.Now()
	var out bytes.Buffer
	err := s.invoke(p, &out)

	if err == nil && fileExists(p.Output) {
		rec := job.Record{
			Status:     job.StatusDone,
			FinishedAt: time.Now().UTC(),
			FileURL:    job.FileURL(s.publicBaseURL, p.ProductID),
		}
		if err := job.WriteRecord(p, rec); err != nil {
			log.Error("failed to persist done record", "error", err.Error())
		}
		log.Info("render completed", "duration_ms", time.Since(start).Milliseconds())
		s.mirrorArtifact(p)
		return
	}

	diagnostic := diagnosticText(out.String(), err)
	if err := job.WriteErrorRecord(p, diagnostic); err != nil {
		log.Error("failed to persist error record", "error", err.Error())
	}
	if err := job.WriteRecord(p, job.Record{Status: job.StatusFailed, FinishedAt: time.Now().UTC()}); err != nil {
		log.Error("failed to persist failed record", "error", err.Error())
	}
	log.Error("render failed",
		"duration_ms", time.Since(start).Milliseconds(),
		"diagnostic", diagnostic,
	)
}

func (s *Supervisor) invoke(p job.Paths, out *bytes.Buffer) error {
	audioPath := p.AudioPath()
	if audioPath == "" {
		return fmt.Errorf("no staged audio file for %s", p.ProductID)
	}

	args := make([]string, 0, len(s.command)+10)
	args = append(args, s.command...)
	args = append(args,
		"--images-dir", p.ImagesDir,
		"--audio-path", audioPath,
		"--output-path", p.Output,
		"--assets-dir", s.assetsDir,
	)
	if p.HasCaptions() {
		args = append(args, "--captions-path", p.Captions)
	}

	// No deadline on the renderer: a render runs to completion or failure.
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

func (s *Supervisor) mirrorArtifact(p job.Paths) {
	if s.mirror == nil {
		return
	}
	log := s.log.WithProductID(p.ProductID)

	f, err := os.Open(p.Output)
	if err != nil {
		log.Warn("mirror skipped, cannot open artifact", "error", err.Error())
		return
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	err = s.mirror.Put(context.Background(), ports.PutArtifactInput{
		Key:         "videos/" + p.ProductID + ".mp4",
		ContentType: "video/mp4",
		Reader:      f,
		Size:        size,
	})
	if err != nil {
		// The local artifact stays canonical; a failed mirror never fails the job.
		log.Warn("artifact mirror failed",
			"provider", s.mirror.Provider(),
			"error", err.Error(),
		)
		return
	}
	log.Info("artifact mirrored", "provider", s.mirror.Provider())
}

func diagnosticText(output string, err error) string {
	msg := strings.TrimSpace(output)
	if msg == "" {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			msg = fmt.Sprintf("renderer exited with code %d", exitErr.ExitCode())
		case err != nil:
			msg = err.Error()
		default:
			msg = "renderer exited cleanly but produced no output artifact"
		}
	}
	if len(msg) > errorRecordLimit {
		msg = msg[:errorRecordLimit]
	}
	return msg
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
