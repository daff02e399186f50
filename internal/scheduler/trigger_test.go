package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

func Test_ParseOnce_ParsesAll(t *testing.T) {
	loc := location(8 * 3600)
	t1 := time.Now().In(loc).Add(5 * time.Minute).Truncate(time.Second)
	t2 := t1.Add(10 * time.Minute)
	input := t1.Format(time.RFC3339) + "," + t2.Format(time.RFC3339)

	triggers, err := parseOnce(input)
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	assert.True(t, triggers[0].At.Equal(t1))
	assert.True(t, triggers[1].At.Equal(t2))
}

func Test_ParseOnce_RejectsInvalid(t *testing.T) {
	_, err := parseOnce("not-a-timestamp")
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func Test_ParseInterval_ValidatesInput(t *testing.T) {
	trig, err := parseInterval(5, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, trig.Minutes)

	_, err = parseInterval(0, 0)
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func Test_ParseCron_DailyWeeklyMonthly(t *testing.T) {
	daily, err := parseCron("0 9 * * *")
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, proto.TriggerDaily, daily[0].Kind)
	assert.Equal(t, 9, daily[0].Hour)
	assert.Equal(t, 0, daily[0].Minute)

	mixed, err := parseCron("30 8 15 * 1")
	require.NoError(t, err)
	require.Len(t, mixed, 2)
	assert.Equal(t, proto.TriggerMonthly, mixed[0].Kind)
	assert.Equal(t, 15, mixed[0].Day)
	assert.Equal(t, 8, mixed[0].Hour)
	assert.Equal(t, 30, mixed[0].Minute)
	assert.Equal(t, proto.TriggerWeekly, mixed[1].Kind)
	assert.Equal(t, 0, mixed[1].Weekday) // Monday

	_, err = parseCron("0 9 * *")
	assert.ErrorIs(t, err, errors.ErrInvalidCron)
}

func Test_ParseCron_RejectsNonWildcardMonth(t *testing.T) {
	_, err := parseCron("0 9 * 6 *")
	assert.ErrorIs(t, err, errors.ErrInvalidCron)
}

// S3: Cron("0,30 9 * * *") -> two Daily triggers at 09:00 and 09:30.
func Test_ParseCron_CommaExpansion(t *testing.T) {
	triggers, err := parseCron("0,30 9 * * *")
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	assert.Equal(t, 0, triggers[0].Minute)
	assert.Equal(t, 30, triggers[1].Minute)
}

func Test_NextIntervalTrigger_AlignsToInterval(t *testing.T) {
	loc := location(0)
	now := time.Now().In(loc)
	anchor := now.Add(-7 * time.Minute)

	next, err := nextIntervalTrigger(anchor, 5, now)
	require.NoError(t, err)
	assert.True(t, !next.Before(now))
	assert.True(t, next.Before(now.Add(6*time.Minute)))
	diff := next.Sub(anchor) / time.Minute
	assert.Equal(t, int64(0), diff%5)
}

func Test_NextIntervalTrigger_AnchorInFuture(t *testing.T) {
	now := time.Now()
	anchor := now.Add(time.Minute)
	next, err := nextIntervalTrigger(anchor, 5, now)
	require.NoError(t, err)
	assert.True(t, !next.Before(now))
	assert.True(t, next.Equal(anchor))
}

func Test_NextTrigger_Once(t *testing.T) {
	loc := location(0)
	future := time.Now().In(loc).Add(2 * time.Minute)
	trig := proto.TriggerTime{Kind: proto.TriggerOnce, At: future}
	got, err := nextTrigger(trig, 0)
	require.NoError(t, err)
	assert.True(t, got.Equal(future))

	past := time.Now().In(loc).Add(-2 * time.Minute)
	trig = proto.TriggerTime{Kind: proto.TriggerOnce, At: past}
	_, err = nextTrigger(trig, 0)
	assert.ErrorIs(t, err, errors.ErrPastTrigger)
}

func Test_NextTrigger_DailyIsStrictlyInTheFuture(t *testing.T) {
	loc := location(0)
	now := time.Now().In(loc)
	target := now.Add(20 * time.Second)

	trig := proto.TriggerTime{Kind: proto.TriggerDaily, Hour: target.Hour(), Minute: target.Minute()}
	next, err := nextTrigger(trig, 0)
	require.NoError(t, err)
	assert.True(t, next.After(now))
	assert.Equal(t, target.Hour(), next.Hour())
	assert.Equal(t, target.Minute(), next.Minute())
}

// Monthly(31, t) on a 30-day month yields day 30 that month.
func Test_NextTrigger_MonthlyClampsToLastDay(t *testing.T) {
	loc := location(0)
	// April has 30 days.
	april := time.Date(2026, time.April, 10, 12, 0, 0, 0, loc)
	candidate := monthlyCandidate(april.Year(), april.Month(), 31, 9, 0, loc)
	assert.Equal(t, 30, candidate.Day())
	assert.Equal(t, time.April, candidate.Month())
}

func Test_NextTrigger_WeeklyMatchesWeekdayAndIsFuture(t *testing.T) {
	loc := location(0)
	now := time.Now().In(loc)
	target := now.Add(20 * time.Second)

	trig := proto.TriggerTime{Kind: proto.TriggerWeekly, Weekday: mondayBased(now.Weekday()), Hour: target.Hour(), Minute: target.Minute()}
	next, err := nextTrigger(trig, 0)
	require.NoError(t, err)
	assert.True(t, next.After(now))
	assert.Equal(t, mondayBased(next.Weekday()), trig.Weekday)
}

// Interval(anchor, m).next_trigger() > now and congruent to anchor mod m minutes.
func Test_NextTrigger_IntervalCongruentToAnchor(t *testing.T) {
	loc := location(0)
	now := time.Now().In(loc)
	anchor := now.Add(-13 * time.Minute)
	trig := proto.TriggerTime{Kind: proto.TriggerInterval, Anchor: anchor, Minutes: 5}

	next, err := nextTrigger(trig, 0)
	require.NoError(t, err)
	assert.True(t, next.After(now))
	diff := next.Sub(anchor) / time.Minute
	assert.Equal(t, int64(0), diff%5)
}
