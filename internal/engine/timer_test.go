package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownRunsToZeroAndStops(t *testing.T) {
	c := NewCountdown(300, DefaultThresholds())
	require.Equal(t, 300, c.Total())
	require.Equal(t, 300, c.Remaining())
	require.False(t, c.TimeUp())

	for i := 0; i < 300; i++ {
		c = c.Tick()
	}
	assert.Equal(t, 0, c.Remaining())
	assert.True(t, c.TimeUp())
	assert.Equal(t, 300, c.Elapsed())

	// 归零后继续 Tick 不再变化，也绝不为负
	c = c.Tick()
	c = c.Tick()
	assert.Equal(t, 0, c.Remaining())
	assert.True(t, c.TimeUp())
}

func TestCountdownTickValueSemantics(t *testing.T) {
	c := NewCountdown(60, DefaultThresholds())
	next := c.Tick()
	assert.Equal(t, 60, c.Remaining())
	assert.Equal(t, 59, next.Remaining())
}

func TestCountdownWarningLevels(t *testing.T) {
	// 总时长 300，阈值 50% / 20%：151 普通，150 告警，61 告警，60 紧急
	c := NewCountdown(300, DefaultThresholds())

	tickTo := func(c Countdown, remaining int) Countdown {
		for c.Remaining() > remaining {
			c = c.Tick()
		}
		return c
	}

	c = tickTo(c, 151)
	assert.Equal(t, WarnNormal, c.Level())

	c = tickTo(c, 150)
	assert.Equal(t, WarnWarning, c.Level())

	c = tickTo(c, 61)
	assert.Equal(t, WarnWarning, c.Level())

	c = tickTo(c, 60)
	assert.Equal(t, WarnCritical, c.Level())

	c = tickTo(c, 0)
	assert.Equal(t, WarnCritical, c.Level())
}

func TestCountdownCustomThresholds(t *testing.T) {
	c := NewCountdown(100, Thresholds{Warning: 0.8, Critical: 0.1})

	assert.Equal(t, WarnNormal, c.Level())
	for c.Remaining() > 80 {
		c = c.Tick()
	}
	assert.Equal(t, WarnWarning, c.Level())
	for c.Remaining() > 10 {
		c = c.Tick()
	}
	assert.Equal(t, WarnCritical, c.Level())
}

func TestCountdownInvalidThresholdsFallBack(t *testing.T) {
	c := NewCountdown(100, Thresholds{Warning: 0.2, Critical: 0.5})
	assert.Equal(t, DefaultThresholds(), c.thresholds)

	c = NewCountdown(100, Thresholds{})
	assert.Equal(t, DefaultThresholds(), c.thresholds)
}

func TestClockFormatting(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{3661, "1:01:01"},
		{3600, "1:00:00"},
		{599, "9:59"},
		{125, "2:05"},
		{60, "1:00"},
		{9, "0:09"},
		{0, "0:00"},
		{-5, "0:00"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatClock(tc.seconds))
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{3725, "1h 2m 5s"},
		{130, "2m 10s"},
		{9, "9s"},
		{0, "0s"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatElapsed(tc.seconds))
	}
}
