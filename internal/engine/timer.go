package engine

import "fmt"

type WarnLevel string

const (
	WarnNormal   WarnLevel = "normal"
	WarnWarning  WarnLevel = "warning"
	WarnCritical WarnLevel = "critical"
)

// Thresholds 剩余时间占总时长的告警阈值（比例）
type Thresholds struct {
	Warning  float64
	Critical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 0.5, Critical: 0.2}
}

// Countdown 倒计时器。值语义：Tick 返回下一个状态，便于脱离真实时钟做单元测试。
// 归零后永久停止，不可重置。
type Countdown struct {
	total      int
	remaining  int
	thresholds Thresholds
}

func NewCountdown(totalSeconds int, th Thresholds) Countdown {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	if th.Warning <= 0 || th.Critical <= 0 || th.Critical >= th.Warning {
		th = DefaultThresholds()
	}
	return Countdown{total: totalSeconds, remaining: totalSeconds, thresholds: th}
}

// Tick 扣减一秒，最低为零，归零后再 Tick 保持不变
func (c Countdown) Tick() Countdown {
	if c.remaining > 0 {
		c.remaining--
	}
	return c
}

func (c Countdown) Total() int { return c.total }

func (c Countdown) Remaining() int { return c.remaining }

func (c Countdown) TimeUp() bool { return c.remaining == 0 }

func (c Countdown) Elapsed() int { return c.total - c.remaining }

// Level 三级紧迫度：高于 warning 阈值为 normal，低于 critical 阈值为 critical
func (c Countdown) Level() WarnLevel {
	r := float64(c.remaining)
	t := float64(c.total)
	switch {
	case r > c.thresholds.Warning*t:
		return WarnNormal
	case r > c.thresholds.Critical*t:
		return WarnWarning
	default:
		return WarnCritical
	}
}

// Clock 格式化为 H:MM:SS，不足一小时为 M:SS
func (c Countdown) Clock() string {
	return FormatClock(c.remaining)
}

func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatElapsed 用时展示，仅用于展示层，不参与数值计算
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
