package job

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "simple numeric", id: "42", wantErr: false},
		{name: "alphanumeric with separators", id: "sku_2024-B", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "path traversal", id: "../etc/passwd", wantErr: true},
		{name: "slash", id: "a/b", wantErr: true},
		{name: "space", id: "a b", wantErr: true},
		{name: "too long", id: strings.Repeat("x", 65), wantErr: true},
		{name: "max length", id: strings.Repeat("x", 64), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("/data", "42")

	assert.Equal(t, "42", p.ProductID)
	assert.Equal(t, filepath.Join("/data", "jobs", "42"), p.Dir)
	assert.Equal(t, filepath.Join("/data", "jobs", "42", "input", "images"), p.ImagesDir)
	assert.Equal(t, filepath.Join("/data", "jobs", "42", "input", "audio.wav"), p.AudioWAV)
	assert.Equal(t, filepath.Join("/data", "jobs", "42", "input", "captions.srt"), p.Captions)
	assert.Equal(t, filepath.Join("/data", "jobs", "42", "output", "video.mp4"), p.Output)
	assert.Equal(t, filepath.Join("/data", "jobs", "42", ".lock"), p.LockFile)
}

func TestTryAcquire_Exclusive(t *testing.T) {
	p := testPaths(t)

	lock, err := TryAcquire(p)
	require.NoError(t, err)

	_, err = TryAcquire(p)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())

	lock2, err := TryAcquire(p)
	require.NoError(t, err)
	require.NoError(t, lock2.Release())

	// Releasing twice is fine.
	require.NoError(t, lock2.Release())
}

func TestTryAcquire_ConcurrentSingleWinner(t *testing.T) {
	p := testPaths(t)

	const attempts = 16
	var wg sync.WaitGroup
	won := make(chan Lock, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock, err := TryAcquire(p); err == nil {
				won <- lock
			}
		}()
	}
	wg.Wait()
	close(won)

	winners := 0
	for lock := range won {
		winners++
		require.NoError(t, lock.Release())
	}
	assert.Equal(t, 1, winners)
}

func TestResolve_Precedence(t *testing.T) {
	const base = "http://localhost:8080"

	t.Run("nothing on disk", func(t *testing.T) {
		p := testPaths(t)
		snap := Resolve(p, base)
		assert.Equal(t, StatusNotFound, snap.Status)
	})

	t.Run("lock means running", func(t *testing.T) {
		p := testPaths(t)
		lock, err := TryAcquire(p)
		require.NoError(t, err)
		defer lock.Release()

		snap := Resolve(p, base)
		assert.Equal(t, StatusRunning, snap.Status)
	})

	t.Run("error record means failed", func(t *testing.T) {
		p := testPaths(t)
		require.NoError(t, WriteErrorRecord(p, "renderer exited with code 1"))

		snap := Resolve(p, base)
		assert.Equal(t, StatusFailed, snap.Status)
		assert.Equal(t, "renderer exited with code 1", snap.Error)
	})

	t.Run("error text is read-truncated", func(t *testing.T) {
		p := testPaths(t)
		require.NoError(t, WriteErrorRecord(p, strings.Repeat("x", 10000)))

		snap := Resolve(p, base)
		assert.Equal(t, StatusFailed, snap.Status)
		assert.Len(t, snap.Error, errorReadLimit)
	})

	t.Run("artifact wins over stale lock and error record", func(t *testing.T) {
		p := testPaths(t)
		_, err := TryAcquire(p)
		require.NoError(t, err)
		require.NoError(t, WriteErrorRecord(p, "old failure"))
		writeArtifact(t, p)

		snap := Resolve(p, base)
		assert.Equal(t, StatusDone, snap.Status)
		assert.Equal(t, base+"/files/"+p.ProductID+"/video.mp4", snap.FileURL)
		assert.Empty(t, snap.Error)
	})

	t.Run("done stays done on repeated queries", func(t *testing.T) {
		p := testPaths(t)
		writeArtifact(t, p)

		first := Resolve(p, base)
		second := Resolve(p, base)
		assert.Equal(t, StatusDone, first.Status)
		assert.Equal(t, first, second)
	})

	t.Run("record fallback when nothing else is derivable", func(t *testing.T) {
		p := testPaths(t)
		require.NoError(t, WriteRecord(p, Record{Status: StatusRunning, StartedAt: time.Now().UTC()}))

		snap := Resolve(p, base)
		assert.Equal(t, StatusRunning, snap.Status)
	})
}

func TestRecordRoundTrip(t *testing.T) {
	p := testPaths(t)

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, WriteRecord(p, Record{Status: StatusRunning, StartedAt: started}))

	rec, err := ReadRecord(p)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, rec.Status)
	assert.True(t, rec.StartedAt.Equal(started))

	// No temp files left behind by the atomic write.
	entries, err := os.ReadDir(p.Dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".promoreel-tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestClearErrorRecord(t *testing.T) {
	p := testPaths(t)

	// Absent record is not an error.
	require.NoError(t, ClearErrorRecord(p))

	require.NoError(t, WriteErrorRecord(p, "boom"))
	require.NoError(t, ClearErrorRecord(p))
	assert.Equal(t, StatusNotFound, Resolve(p, "http://x").Status)
}

func TestAudioPathPreference(t *testing.T) {
	p := testPaths(t)

	assert.Empty(t, p.AudioPath())

	require.NoError(t, os.WriteFile(p.AudioMP3, []byte("mp3"), 0o644))
	assert.Equal(t, p.AudioMP3, p.AudioPath())

	require.NoError(t, os.WriteFile(p.AudioWAV, []byte("wav"), 0o644))
	assert.Equal(t, p.AudioWAV, p.AudioPath())
}

func testPaths(t *testing.T) Paths {
	t.Helper()
	p := PathsFor(t.TempDir(), "42")
	require.NoError(t, p.EnsureDirs())
	return p
}

func writeArtifact(t *testing.T, p Paths) {
	t.Helper()
	require.NoError(t, os.WriteFile(p.Output, []byte("video"), 0o644))
}
