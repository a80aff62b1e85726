package output

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRotatingWriterLimits(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("REVBRIDGE_LOG_MAX_SIZE", "")
		t.Setenv("REVBRIDGE_LOG_MAX_BACKUPS", "")
		t.Setenv("REVBRIDGE_LOG_MAX_AGE", "")
		w := newRotatingWriter("/tmp/x.log")
		require.Equal(t, 1, w.MaxSize)
		require.Equal(t, 2, w.MaxBackups)
		require.Equal(t, 30, w.MaxAge)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("REVBRIDGE_LOG_MAX_SIZE", "10")
		t.Setenv("REVBRIDGE_LOG_MAX_BACKUPS", "0")
		t.Setenv("REVBRIDGE_LOG_MAX_AGE", "bogus")
		w := newRotatingWriter("/tmp/x.log")
		require.Equal(t, 10, w.MaxSize)
		require.Equal(t, 0, w.MaxBackups)
		require.Equal(t, 30, w.MaxAge)
	})
}
