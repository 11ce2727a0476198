// Package retry - ограниченная экспоненциальная задержка между повторами.
package retry

import (
	"math"
	"time"
)

type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay возвращает base * 2^(attempt-1), не больше Max
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return b.Base
	}
	delay := time.Duration(float64(b.Base) * math.Pow(2, float64(attempt-1)))
	if b.Max > 0 && (delay > b.Max || delay <= 0) {
		return b.Max
	}
	return delay
}
