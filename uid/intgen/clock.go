package intgen

import "time"

// Clock 时钟接口，测试中可以替换为可控时钟
type Clock interface {
	Now() time.Time
}

// ClockFunc 函数适配为 Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock 系统时钟
var SystemClock Clock = systemClock{}
