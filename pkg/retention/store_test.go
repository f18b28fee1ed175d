package retention

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pir2motion/pir2motion/pkg/errors"
)

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"v20240101T000000.mkv", "v20240109T000000.mkv", "notes.txt", "v.mkv.part"} {
		require.NoError(t, os.WriteFile(path.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(path.Join(dir, "old.mkv"), 0755))

	s := NewLocalStore(dir)
	files, err := s.List()
	require.NoError(t, err)
	require.Len(t, files, 2)

	names := []string{files[0].Name, files[1].Name}
	require.ElementsMatch(t, []string{"v20240101T000000.mkv", "v20240109T000000.mkv"}, names)
	for _, f := range files {
		require.Equal(t, path.Join(dir, f.Name), f.Path)
		require.WithinDuration(t, time.Now(), f.Created, time.Minute)
	}

	require.NoError(t, s.Remove(files[0]))
	_, err = os.Stat(files[0].Path)
	require.True(t, os.IsNotExist(err))

	// already gone
	require.ErrorIs(t, s.Remove(files[0]), errors.ErrCleanup)

	files, err = s.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestLocalStoreMissingDir(t *testing.T) {
	s := NewLocalStore(path.Join(t.TempDir(), "missing"))
	_, err := s.List()
	require.Error(t, err)
}
