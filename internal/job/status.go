package job

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusNotFound Status = "not_found"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// errorReadLimit caps how much of the persisted diagnostic is read back.
const errorReadLimit = 2000

// Record is the persisted status snapshot. It is advisory: "done" and
// "failed" are always re-derived from artifact and error-record presence,
// so a crash mid-write can never corrupt the externally observable state.
type Record struct {
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
}

// Snapshot is what the oracle reports to callers.
type Snapshot struct {
	ProductID string
	Status    Status
	FileURL   string
	Error     string
}

// FileURL builds the public URL for the job's artifact.
func FileURL(publicBaseURL, productID string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/files/" + productID + "/video.mp4"
}

// Resolve derives the job's current state purely from filesystem facts, in
// strict precedence order: artifact, error record, lock marker, persisted
// record, nothing. A finished artifact always wins, even over a stale lock
// or a leftover error record from an earlier attempt.
func Resolve(p Paths, publicBaseURL string) Snapshot {
	snap := Snapshot{ProductID: p.ProductID}

	if fileExists(p.Output) {
		snap.Status = StatusDone
		snap.FileURL = FileURL(publicBaseURL, p.ProductID)
		return snap
	}

	if msg, ok := readErrorRecord(p.ErrorFile); ok {
		snap.Status = StatusFailed
		snap.Error = msg
		return snap
	}

	if Locked(p) {
		snap.Status = StatusRunning
		return snap
	}

	if rec, err := ReadRecord(p); err == nil && rec.Status != "" {
		snap.Status = rec.Status
		snap.FileURL = rec.FileURL
		return snap
	}

	snap.Status = StatusNotFound
	return snap
}

// WriteRecord persists the status snapshot via write-temp-then-rename so a
// poll can never observe a half-written record.
func WriteRecord(p Paths, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status record for %s: %w", p.ProductID, err)
	}
	data = append(data, '\n')
	return writeFileAtomic(p.StatusFile, data)
}

// ReadRecord loads the persisted status record.
func ReadRecord(p Paths) (Record, error) {
	var rec Record
	data, err := os.ReadFile(p.StatusFile)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parse status record %s: %w", p.StatusFile, err)
	}
	return rec, nil
}

// WriteErrorRecord persists the diagnostic text from a failed render.
func WriteErrorRecord(p Paths, diagnostic string) error {
	return writeFileAtomic(p.ErrorFile, []byte(diagnostic))
}

// ClearErrorRecord removes a stale error record, tolerating absence.
func ClearErrorRecord(p Paths) error {
	if err := os.Remove(p.ErrorFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear error record %s: %w", p.ErrorFile, err)
	}
	return nil
}

func readErrorRecord(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, errorReadLimit))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".promoreel-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
