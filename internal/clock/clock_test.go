package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestClockAdvanceFiresTimersInOrder(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	c := NewTestClock(start)
	require.Equal(t, start, c.Now())

	var fired []string
	record := func(ev TimeEvent) { fired = append(fired, ev.Name) }

	require.NoError(t, c.SetTimer("b", start.Add(2*time.Second), record))
	require.NoError(t, c.SetTimer("a", start.Add(2*time.Second), record))
	require.NoError(t, c.SetTimer("first", start.Add(1*time.Second), record))
	require.NoError(t, c.SetTimer("late", start.Add(10*time.Second), record))

	events := c.Advance(start.Add(5 * time.Second))
	require.Len(t, events, 3)
	// 同一时刻按名字排序，整体按到期时间排序
	assert.Equal(t, []string{"first", "a", "b"}, fired)
	assert.Equal(t, start.Add(5*time.Second), c.Now())
	assert.Equal(t, []string{"late"}, c.TimerNames())

	events = c.Advance(start.Add(10 * time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, "late", events[0].Name)
	assert.Empty(t, c.TimerNames())
}

func TestTestClockDuplicateTimerName(t *testing.T) {
	c := NewTestClock(time.Unix(0, 0))
	require.NoError(t, c.SetTimer("x", time.Unix(10, 0), func(TimeEvent) {}))
	assert.Error(t, c.SetTimer("x", time.Unix(20, 0), func(TimeEvent) {}))

	c.CancelTimer("x")
	assert.Empty(t, c.TimerNames())
	assert.NoError(t, c.SetTimer("x", time.Unix(20, 0), func(TimeEvent) {}))
}

func TestTestClockRepeatingTimerFiresEachInterval(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	c := NewTestClock(start)

	var fired []time.Time
	require.NoError(t, c.SetRepeatingTimer("bar", start.Add(time.Minute), time.Minute, func(ev TimeEvent) {
		fired = append(fired, ev.TsEvent)
		// 回调时刻即到期时刻
		assert.Equal(t, ev.TsEvent, c.Now())
	}))

	events := c.Advance(start.Add(3 * time.Minute))
	require.Len(t, events, 3)
	assert.Equal(t, []time.Time{
		start.Add(1 * time.Minute),
		start.Add(2 * time.Minute),
		start.Add(3 * time.Minute),
	}, fired)
	// 续期保留，下个区间继续触发
	assert.Equal(t, []string{"bar"}, c.TimerNames())

	events = c.Advance(start.Add(5 * time.Minute))
	require.Len(t, events, 2)

	c.CancelTimer("bar")
	assert.Empty(t, c.Advance(start.Add(10*time.Minute)))
}

func TestTestClockRepeatingAndOneShotInterleaveDeterministically(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	c := NewTestClock(start)

	var fired []string
	record := func(ev TimeEvent) { fired = append(fired, ev.Name) }
	require.NoError(t, c.SetRepeatingTimer("every2", start.Add(2*time.Second), 2*time.Second, record))
	require.NoError(t, c.SetTimer("once", start.Add(4*time.Second), record))

	c.Advance(start.Add(6 * time.Second))
	// 4s 时刻同名冲突按名字排序
	assert.Equal(t, []string{"every2", "every2", "once", "every2"}, fired)
}

func TestTestClockRepeatingTimerRejectsBadInterval(t *testing.T) {
	c := NewTestClock(time.Unix(0, 0))
	assert.Error(t, c.SetRepeatingTimer("x", time.Unix(5, 0), 0, func(TimeEvent) {}))
	assert.Error(t, c.SetRepeatingTimer("x", time.Unix(5, 0), -time.Second, func(TimeEvent) {}))
	require.NoError(t, c.SetRepeatingTimer("x", time.Unix(5, 0), time.Second, func(TimeEvent) {}))
	assert.Error(t, c.SetTimer("x", time.Unix(9, 0), func(TimeEvent) {}))
}

func TestTestClockSetTimeDoesNotFire(t *testing.T) {
	c := NewTestClock(time.Unix(0, 0))
	fired := false
	require.NoError(t, c.SetTimer("x", time.Unix(5, 0), func(TimeEvent) { fired = true }))
	c.SetTime(time.Unix(100, 0))
	assert.False(t, fired)
	assert.Equal(t, []string{"x"}, c.TimerNames())
}
