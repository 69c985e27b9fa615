package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	s := NewService(dir, 24*time.Hour, time.Hour, time.Minute, zap.NewNop())
	return s, dir
}

// drain runs queued deletions synchronously so tests can assert afterwards.
func drain(s *Service) {
	for {
		select {
		case path := <-s.deleteCh:
			s.processDelete(path)
		default:
			return
		}
	}
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestSweepDeletesExpiredRegistered(t *testing.T) {
	s, dir := newTestService(t)
	old := touch(t, dir, "video_1.mp4")
	fresh := touch(t, dir, "video_2.mp4")

	base := time.Now()
	s.now = func() time.Time { return base }
	s.Register(old)
	s.now = func() time.Time { return base.Add(time.Hour) }
	s.Register(fresh)

	s.now = func() time.Time { return base.Add(25 * time.Hour) }
	s.Sweep()
	drain(s)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)

	s.mu.Lock()
	_, stillTracked := s.registry[old]
	s.mu.Unlock()
	assert.False(t, stillTracked, "expired entries must leave the registry")
}

func TestSweepRetriesWhenDeleteQueueOverflows(t *testing.T) {
	s, dir := newTestService(t)

	base := time.Now()
	s.now = func() time.Time { return base }
	// more expired files than the delete queue holds in one pass
	var paths []string
	for i := 0; i < 70; i++ {
		p := touch(t, dir, fmt.Sprintf("video_%d_aaaa.mp4", i))
		s.Register(p)
		paths = append(paths, p)
	}

	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	s.Sweep()
	drain(s)

	// the overflow stays registered and a later sweep finishes the job
	s.mu.Lock()
	remaining := len(s.registry)
	s.mu.Unlock()
	assert.Greater(t, remaining, 0, "deferred entries must stay in the registry")

	s.Sweep()
	drain(s)

	for _, p := range paths {
		assert.NoFileExists(t, p)
	}
	s.mu.Lock()
	assert.Empty(t, s.registry)
	assert.Empty(t, s.queued)
	s.mu.Unlock()
}

func TestSweepDoesNotDoubleQueue(t *testing.T) {
	s, dir := newTestService(t)

	base := time.Now()
	s.now = func() time.Time { return base }
	p := touch(t, dir, "video_1_bbbb.mp4")
	s.Register(p)

	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	s.Sweep()
	s.Sweep() // still queued from the first pass

	assert.Len(t, s.deleteCh, 1, "a queued path must not be enqueued twice")
	drain(s)
	assert.NoFileExists(t, p)
}

func TestEnqueueRefusedAfterStop(t *testing.T) {
	s, dir := newTestService(t)
	require.NoError(t, s.Start())
	s.Stop()

	// a late orphan sweep from a finishing task must not panic
	p := touch(t, dir, "temp_background_late.mp4")
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(p, past, past))
	s.SweepOrphans()

	assert.FileExists(t, p, "nothing is deleted after shutdown")
}

func TestSweepOrphansByAge(t *testing.T) {
	s, dir := newTestService(t)
	orphan := touch(t, dir, "temp_background_abc.mp4")
	keeper := touch(t, dir, "video_final.mp4")

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	s.SweepOrphans()
	drain(s)

	assert.NoFileExists(t, orphan)
	assert.FileExists(t, keeper, "non-temp files are never orphan-swept")
}

func TestSweepOrphansSkipsFreshAndTracked(t *testing.T) {
	s, dir := newTestService(t)
	fresh := touch(t, dir, "temp_audio_new.mp3")
	tracked := touch(t, dir, "temp_background_live.mp4")
	s.Register(tracked)

	// ages come from real mtimes; only the tracked file is old enough
	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(tracked, past, past))

	s.SweepOrphans()
	drain(s)

	assert.FileExists(t, fresh, "fresh temp files may belong to a running task")
	assert.FileExists(t, tracked, "registered files follow retention, not orphan age")
}

func TestSweepOrphansRemovesTempDirs(t *testing.T) {
	s, dir := newTestService(t)
	work := filepath.Join(dir, "temp_render_xyz")
	require.NoError(t, os.MkdirAll(work, 0o755))
	touch(t, work, "subtitles.ass")
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(work, past, past))

	s.SweepOrphans()
	drain(s)

	assert.NoDirExists(t, work)
}

func TestCleanAllTemp(t *testing.T) {
	s, dir := newTestService(t)
	a := touch(t, dir, "temp_audio_1.mp3")
	b := touch(t, dir, "temp_background_2.mp4")
	keep := touch(t, dir, "video_3.mp4")

	s.CleanAllTemp()

	assert.NoFileExists(t, a)
	assert.NoFileExists(t, b)
	assert.FileExists(t, keep)
}

func TestStartStop(t *testing.T) {
	s, dir := newTestService(t)
	require.NoError(t, s.Start())

	doomed := touch(t, dir, "video_old.mp4")
	base := time.Now()
	s.now = func() time.Time { return base }
	s.Register(doomed)
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	s.Sweep()

	s.Stop() // waits for workers to drain the queue
	assert.NoFileExists(t, doomed)
}
