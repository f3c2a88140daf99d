package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	r, err := Open(filepath.Join(dir, "recordpipe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry(t)
	start := time.Now().Truncate(time.Second)

	rec, err := r.Create("rec-1", "rec-1.mp4", "/data/rec-1.mp4", start)
	require.NoError(t, err)
	assert.Equal(t, StatusRecording, rec.Status)
	assert.Nil(t, rec.EndTime)

	got, err := r.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1.mp4", got.FileName)
	assert.WithinDuration(t, start, got.StartTime, time.Second)
}

func TestGet_NotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get("missing")
	require.Error(t, err)
}

func TestUpdateCompleted(t *testing.T) {
	r := newTestRegistry(t)
	start := time.Now()
	_, err := r.Create("rec-2", "rec-2.mp4", "/data/rec-2.mp4", start)
	require.NoError(t, err)

	end := start.Add(3 * time.Second)
	rec, err := r.UpdateCompleted("rec-2", end, 3, 4096)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.DurationSeconds)
	assert.Equal(t, int64(3), *rec.DurationSeconds)
	require.NotNil(t, rec.FileSizeBytes)
	assert.Equal(t, int64(4096), *rec.FileSizeBytes)
}

func TestUpdateFailed_ZeroSizeFile(t *testing.T) {
	r := newTestRegistry(t)
	start := time.Now()
	_, err := r.Create("rec-3", "rec-3.mp4", "/data/rec-3.mp4", start)
	require.NoError(t, err)

	rec, err := r.UpdateFailed("rec-3", start, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
}

func TestUpdate_MissingRow(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.UpdateCompleted("nope", time.Now(), 1, 1)
	require.Error(t, err)
}

func TestList_OrderedByStartTimeDesc(t *testing.T) {
	r := newTestRegistry(t)
	base := time.Now()
	_, err := r.Create("older", "older.mp4", "/data/older.mp4", base)
	require.NoError(t, err)
	_, err = r.Create("newer", "newer.mp4", "/data/newer.mp4", base.Add(time.Minute))
	require.NoError(t, err)

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
}

func TestDelete(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create("rec-4", "rec-4.mp4", "/data/rec-4.mp4", time.Now())
	require.NoError(t, err)

	require.NoError(t, r.Delete("rec-4"))
	_, err = r.Get("rec-4")
	require.Error(t, err)

	err = r.Delete("rec-4")
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	r := newTestRegistry(t)
	assert.NoError(t, r.Ping())
}
