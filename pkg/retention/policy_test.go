package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pir2motion/pir2motion/pkg/recorder"
)

func TestMaxAge(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)
	week := 7 * 24 * time.Hour

	files := []File{
		{Name: "v20240101T000000.mkv", Created: now.Add(-10 * 24 * time.Hour)},
		{Name: "v20240109T000000.mkv", Created: now.Add(-2 * time.Hour)},
		{Name: "boundary.mkv", Created: now.Add(-week)},
		{Name: "just-older.mkv", Created: now.Add(-week - time.Nanosecond)},
	}

	selected := MaxAge{Age: week}.Select(files, now)
	require.Len(t, selected, 2)
	require.Equal(t, "v20240101T000000.mkv", selected[0].Name)
	require.Equal(t, "just-older.mkv", selected[1].Name)
}

func TestExactName(t *testing.T) {
	files := []File{
		{Name: "v20240101T000000.mkv"},
		{Name: "v20240101T000001.mkv"},
	}
	selected := ExactName{Name: "v20240101T000001.mkv"}.Select(files, time.Now())
	require.Len(t, selected, 1)
	require.Equal(t, "v20240101T000001.mkv", selected[0].Name)

	require.Empty(t, ExactName{Name: "missing.mkv"}.Select(files, time.Now()))
}

func TestPolicyFor(t *testing.T) {
	now := time.Now()

	s := recorder.NewSession(recorder.SelfTest, "/videos", now)
	require.Equal(t, ExactName{Name: s.Filename}, PolicyFor(s, time.Hour))

	s = recorder.NewSession(recorder.Normal, "/videos", now)
	require.Equal(t, MaxAge{Age: time.Hour}, PolicyFor(s, time.Hour))
}
