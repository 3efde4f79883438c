// Package staging materializes a job's input assets before a render attempt,
// from direct uploads or from fallback sources.
package staging

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"promoreel/internal/catalog"
	"promoreel/internal/job"
	"promoreel/internal/pkg/errors"
	"promoreel/internal/pkg/logger"
)

// Uploads are the assets supplied directly on a submission. Any of them may
// be absent; staging then falls back to the media library (audio, captions)
// or the product catalog (images).
type Uploads struct {
	Audio    *multipart.FileHeader
	Captions *multipart.FileHeader
	Images   []*multipart.FileHeader
}

type Stager struct {
	libraryRoot string
	catalog     *catalog.Client
	log         *logger.Logger
}

func New(libraryRoot string, cat *catalog.Client, log *logger.Logger) *Stager {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Stager{
		libraryRoot: libraryRoot,
		catalog:     cat,
		log:         log.WithComponent("staging"),
	}
}

// Stage populates the job's input directory. Audio is required and its
// absence is a hard failure; captions are optional; images come from the
// upload set or, failing that, from the product catalog.
func (s *Stager) Stage(ctx context.Context, p job.Paths, up Uploads) error {
	log := s.log.WithProductID(p.ProductID)

	if err := s.stageAudio(p, up.Audio); err != nil {
		return err
	}
	if err := s.stageCaptions(p, up.Captions); err != nil {
		return err
	}
	if len(up.Images) > 0 {
		if err := s.stageUploadedImages(p, up.Images); err != nil {
			return err
		}
		log.Debug("images staged from upload", "count", len(up.Images))
		return nil
	}

	count, err := s.stageCatalogImages(ctx, p)
	if err != nil {
		return err
	}
	log.Debug("images staged from catalog", "count", count)
	return nil
}

func (s *Stager) stageAudio(p job.Paths, upload *multipart.FileHeader) error {
	// Drop any previously staged audio first so a WAV from an earlier
	// attempt cannot shadow a freshly staged MP3.
	for _, stale := range []string{p.AudioWAV, p.AudioMP3} {
		if err := removeIfExists(stale); err != nil {
			return err
		}
	}

	if upload != nil {
		dst, err := audioDestination(p, upload.Filename)
		if err != nil {
			return err
		}
		return saveMultipart(upload, dst)
	}

	for _, name := range []string{"audio.wav", "audio.mp3"} {
		src := filepath.Join(s.libraryRoot, p.ProductID, name)
		dst := p.AudioWAV
		if strings.HasSuffix(name, ".mp3") {
			dst = p.AudioMP3
		}
		copied, err := copyIfExists(src, dst)
		if err != nil {
			return errors.Wrap(err, "staging.audio", "failed to copy library audio")
		}
		if copied {
			return nil
		}
	}

	return errors.New(errors.CodeNotFound, "audio not found").WithField("productId", p.ProductID)
}

func (s *Stager) stageCaptions(p job.Paths, upload *multipart.FileHeader) error {
	// Remove prior captions so a re-staged job cannot keep captions that
	// are no longer wanted.
	if err := removeIfExists(p.Captions); err != nil {
		return err
	}

	if upload != nil {
		return saveMultipart(upload, p.Captions)
	}

	src := filepath.Join(s.libraryRoot, p.ProductID, "captions.srt")
	if _, err := copyIfExists(src, p.Captions); err != nil {
		return errors.Wrap(err, "staging.captions", "failed to copy library captions")
	}
	return nil
}

// stageUploadedImages rewrites the uploaded set as a zero-padded sequence
// ordered by the lexicographic order of the original filenames, so the frame
// order is deterministic regardless of multipart part order.
func (s *Stager) stageUploadedImages(p job.Paths, uploads []*multipart.FileHeader) error {
	if err := clearImages(p.ImagesDir); err != nil {
		return err
	}

	ordered := make([]*multipart.FileHeader, len(uploads))
	copy(ordered, uploads)
	sort.Slice(ordered, func(i, j int) bool {
		return filepath.Base(ordered[i].Filename) < filepath.Base(ordered[j].Filename)
	})

	for i, fh := range ordered {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext == "" {
			ext = ".jpg"
		}
		dst := filepath.Join(p.ImagesDir, fmt.Sprintf("%03d%s", i+1, ext))
		if err := saveMultipart(fh, dst); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stager) stageCatalogImages(ctx context.Context, p job.Paths) (int, error) {
	refs, err := s.catalog.ProductImages(ctx, p.ProductID)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, errors.New(errors.CodeNotFound, "images not found").WithField("productId", p.ProductID)
	}

	if err := clearImages(p.ImagesDir); err != nil {
		return 0, err
	}

	for i, ref := range refs {
		ext := catalog.ImageExt(ref)
		if ext == "" {
			ext = ".jpg"
		}
		dst := filepath.Join(p.ImagesDir, fmt.Sprintf("%03d%s", i+1, ext))
		if err := s.downloadImage(ctx, ref, dst); err != nil {
			return 0, err
		}
	}
	return len(refs), nil
}

func (s *Stager) downloadImage(ctx context.Context, ref, dst string) error {
	rc, err := s.catalog.FetchImage(ctx, ref)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "staging.images", "failed to create staged image")
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return errors.Wrap(err, "staging.images", "failed to write staged image")
	}
	return nil
}

func audioDestination(p job.Paths, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return p.AudioWAV, nil
	case ".mp3":
		return p.AudioMP3, nil
	default:
		return "", errors.ValidationField("audio", "audio must be a .wav or .mp3 file")
	}
}

func saveMultipart(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "staging.upload", "failed to open uploaded file")
	}
	defer src.Close()

	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "staging.upload", "failed to create staged file")
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		return errors.Wrap(err, "staging.upload", "failed to write staged file")
	}
	return nil
}

// clearImages deletes previously staged image files so re-staging never
// leaves stale frames from an earlier attempt in the sequence.
func clearImages(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "staging.images", "failed to read images directory")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return errors.Wrap(err, "staging.images", "failed to remove stale image")
		}
	}
	return nil
}

func copyIfExists(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return false, err
	}
	return true, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "staging.cleanup", "failed to remove stale input")
	}
	return nil
}
