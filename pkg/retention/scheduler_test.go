package retention

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s, err := NewScheduler("", func() {})
		require.NoError(t, err)
		s.Start()
		require.Nil(t, s.NextRun())
		s.Stop()
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewScheduler("every tuesday", func() {})
		require.Error(t, err)
	})

	t.Run("hourly", func(t *testing.T) {
		s, err := NewScheduler("0 * * * *", func() {})
		require.NoError(t, err)
		s.Start()
		s.Start()
		require.NotNil(t, s.NextRun())
		s.Stop()
		s.Stop()
		require.Nil(t, s.NextRun())
	})
}
