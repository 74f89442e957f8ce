package mdx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgressStateReportsAtInterval(t *testing.T) {
	var calls []uint64
	state := newProgressState("phase", 100, 10, func(s *ProgressState) bool {
		calls = append(calls, s.Current)
		return false
	})

	for i := uint64(0); i < 100; i++ {
		state.report(i)
	}

	require.NotEmpty(t, calls)
	require.Less(t, len(calls), 100)
	require.Equal(t, uint64(99), calls[len(calls)-1])
}

func TestProgressStateNoReporterIsNoop(t *testing.T) {
	state := newProgressState("phase", 10, 10, nil)
	require.False(t, state.report(5))
}

func TestProgressStateZeroTotalNeverReports(t *testing.T) {
	called := false
	state := newProgressState("phase", 0, 10, func(s *ProgressState) bool {
		called = true
		return false
	})
	require.False(t, state.report(0))
	require.False(t, called)
}

func TestProgressStateCancelPropagates(t *testing.T) {
	state := newProgressState("phase", 10, 10, func(s *ProgressState) bool {
		return true
	})
	require.True(t, state.report(9))
}
