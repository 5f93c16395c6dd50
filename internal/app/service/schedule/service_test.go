package schedule

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/fernpay/paydesk/pkg/types"
)

func TestNextRunAt_Weekly_LandsOnFollowingMonday(t *testing.T) {
	// 2024-01-01 is itself a Monday; the next run must be the following one.
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := NextRunAt(types.ScheduleFrequencyWeekly, now, DefaultHour)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), got)

	// Mid-week submission lands on the coming Monday.
	now = time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC) // Wednesday
	got, err = NextRunAt(types.ScheduleFrequencyWeekly, now, DefaultHour)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), got)
}

func TestNextRunAt_Monthly_FirstOfNextMonth(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	got, err := NextRunAt(types.ScheduleFrequencyMonthly, now, DefaultHour)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), got)

	// December rolls over the year boundary.
	now = time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)
	got, err = NextRunAt(types.ScheduleFrequencyMonthly, now, DefaultHour)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), got)
}

func TestNextRunAt_Yearly_JanFirstNextYear(t *testing.T) {
	now := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	got, err := NextRunAt(types.ScheduleFrequencyYearly, now, DefaultHour)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), got)
}

func TestNextRunAt_UnknownFrequency(t *testing.T) {
	_, err := NextRunAt(types.ScheduleFrequency("daily"), time.Now(), DefaultHour)
	require.Error(t, err)
}

func TestCronExpression_ParsesAndMatchesNextRun(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, freq := range []types.ScheduleFrequency{
		types.ScheduleFrequencyWeekly,
		types.ScheduleFrequencyMonthly,
		types.ScheduleFrequencyYearly,
	} {
		expr, err := CronExpression(freq, DefaultHour)
		require.NoError(t, err)

		sched, err := cron.ParseStandard(expr)
		require.NoError(t, err, "cron spec %q must parse", expr)

		// The cron schedule must fire exactly at the computed next run.
		next, err := NextRunAt(freq, now, DefaultHour)
		require.NoError(t, err)
		require.Equal(t, next, sched.Next(next.Add(-time.Minute)), "freq %s", freq)
	}
}

func TestCronExpression_UnknownFrequency(t *testing.T) {
	_, err := CronExpression(types.ScheduleFrequency("hourly"), DefaultHour)
	require.Error(t, err)
}
