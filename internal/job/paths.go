// Package job holds the per-product render job state: the canonical path
// layout, the on-disk lock, and the status oracle that derives a job's
// lifecycle from filesystem facts.
package job

import (
	"os"
	"path/filepath"
	"regexp"

	"promoreel/internal/pkg/errors"
)

// idPattern is the allow-list for product identifiers. Identifiers become
// path segments, so anything outside this set is rejected before a single
// path is built.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID checks a product identifier against the allow-list.
func ValidateID(productID string) error {
	if productID == "" {
		return errors.ValidationField("productId", "productId is required")
	}
	if !idPattern.MatchString(productID) {
		return errors.ValidationField("productId", "productId must match [A-Za-z0-9_-]{1,64}")
	}
	return nil
}

// Paths is the canonical set of filesystem locations for one product's
// render job. Everything lives under {root}/jobs/{productID}.
type Paths struct {
	ProductID string

	Dir       string // jobs/{id}
	InputDir  string // jobs/{id}/input
	ImagesDir string // jobs/{id}/input/images
	AudioWAV  string // jobs/{id}/input/audio.wav
	AudioMP3  string // jobs/{id}/input/audio.mp3
	Captions  string // jobs/{id}/input/captions.srt
	OutputDir string // jobs/{id}/output
	Output    string // jobs/{id}/output/video.mp4

	LockFile   string // jobs/{id}/.lock
	StatusFile string // jobs/{id}/status.json
	ErrorFile  string // jobs/{id}/error.log
}

// PathsFor maps a product identifier to its job locations. It performs no
// validation; callers go through ValidateID first.
func PathsFor(root, productID string) Paths {
	dir := filepath.Join(root, "jobs", productID)
	input := filepath.Join(dir, "input")
	output := filepath.Join(dir, "output")

	return Paths{
		ProductID:  productID,
		Dir:        dir,
		InputDir:   input,
		ImagesDir:  filepath.Join(input, "images"),
		AudioWAV:   filepath.Join(input, "audio.wav"),
		AudioMP3:   filepath.Join(input, "audio.mp3"),
		Captions:   filepath.Join(input, "captions.srt"),
		OutputDir:  output,
		Output:     filepath.Join(output, "video.mp4"),
		LockFile:   filepath.Join(dir, ".lock"),
		StatusFile: filepath.Join(dir, "status.json"),
		ErrorFile:  filepath.Join(dir, "error.log"),
	}
}

// EnsureDirs creates the job's working directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.ImagesDir, p.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "job.dirs", "failed to create job directory")
		}
	}
	return nil
}

// AudioPath resolves the staged audio file, preferring WAV over MP3 when
// both exist. Returns "" when no audio is staged.
func (p Paths) AudioPath() string {
	if fileExists(p.AudioWAV) {
		return p.AudioWAV
	}
	if fileExists(p.AudioMP3) {
		return p.AudioMP3
	}
	return ""
}

// HasCaptions reports whether a captions file is staged.
func (p Paths) HasCaptions() bool {
	return fileExists(p.Captions)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
