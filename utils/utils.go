package utils

import (
	"strings"
	"time"
)

func MinInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func MaxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func IsProdEnv() bool {
	return strings.Contains(strings.ToLower(config.Stage), "prod")
}

// Clock lets time be injected into services and limiters
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock is a Clock backed by time.Now
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
