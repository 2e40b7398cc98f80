package banlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsHealthyDefaultsTrueForUnknownProxy(t *testing.T) {
	b := New(3, 30*time.Minute)
	require.True(t, b.IsHealthy(42))
}

func TestReportFailureBansAfterMaxFailures(t *testing.T) {
	b := New(3, 50*time.Millisecond)
	b.ReportFailure(0)
	b.ReportFailure(0)
	require.True(t, b.IsHealthy(0), "should still be healthy after 2 of 3 failures")
	b.ReportFailure(0)
	require.False(t, b.IsHealthy(0), "should be banned after 3rd failure")
}

func TestBanExpiresAfterDuration(t *testing.T) {
	b := New(1, 20*time.Millisecond)
	b.ReportFailure(0)
	require.False(t, b.IsHealthy(0))
	time.Sleep(30 * time.Millisecond)
	require.True(t, b.IsHealthy(0), "ban should have lazily expired")
}

func TestReportSuccessClearsStreakAndBan(t *testing.T) {
	b := New(3, time.Minute)
	b.ReportFailure(0)
	b.ReportFailure(0)
	b.ReportSuccess(0)
	b.ReportFailure(0)
	b.ReportFailure(0)
	require.True(t, b.IsHealthy(0), "streak should have reset on success")
}

func TestReportSuccessIdempotent(t *testing.T) {
	b := New(3, time.Minute)
	b.ReportSuccess(5)
	b.ReportSuccess(5)
	require.True(t, b.IsHealthy(5))
}

func TestHealthyIndicesExcludesBanned(t *testing.T) {
	b := New(1, time.Minute)
	b.ReportFailure(1)
	healthy := b.HealthyIndices([]int{0, 1, 2})
	require.ElementsMatch(t, []int{0, 2}, healthy)
}

func TestUnknownProxyReportDoesNotPanic(t *testing.T) {
	b := New(3, time.Minute)
	require.NotPanics(t, func() {
		b.ReportFailure(999)
		b.ReportSuccess(999)
	})
}
