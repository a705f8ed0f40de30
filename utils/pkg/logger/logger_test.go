package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAirdrop_Logger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 7, 5, 1, 42_900_000, time.FixedZone("X", 3600))
	require.Equal(t, "2024-03-09T06:05:01.042Z", formatRFC3339Millis(ts))
}

func TestAirdrop_Logger_DropsEmptyStrings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, false, true)
	log.Info("claimcache: hello", "empty", "", "distributor", "abc")

	out := buf.String()
	require.Contains(t, out, "claimcache: hello")
	require.Contains(t, out, "distributor=abc")
	require.NotContains(t, out, "empty=")
}

func TestAirdrop_Logger_VerboseEnablesDebug(t *testing.T) {
	t.Parallel()

	var quiet, verbose bytes.Buffer
	NewWithWriter(&quiet, false, true).Debug("hidden")
	NewWithWriter(&verbose, true, true).Debug("shown")

	require.Empty(t, quiet.String())
	require.Contains(t, verbose.String(), "shown")
}
