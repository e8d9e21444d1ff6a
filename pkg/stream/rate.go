package stream

import (
	"math"
	"sync/atomic"
	"time"
)

// Параметры оценки частоты кадров
const (
	DefaultRateWindow = 30
	DefaultFPS        = 25.0
	rateEpsilon       = 1e-6 // секунды; защита от деления на ноль
	MinRecordingFPS   = 1.0
	MaxRecordingFPS   = 60.0
)

// RateEstimator сглаживает мгновенную частоту кадров скользящим средним.
// Update вызывается только горутиной приема; FPS можно читать из любой горутины.
type RateEstimator struct {
	window  []float64
	next    int
	count   int
	last    time.Time
	hasLast bool

	estimate atomic.Uint64 // math.Float64bits
}

// NewRateEstimator создает оценщик с окном size отсчетов.
// initial возвращается FPS до появления первого отсчета.
func NewRateEstimator(size int, initial float64) *RateEstimator {
	if size < 1 {
		size = DefaultRateWindow
	}
	r := &RateEstimator{window: make([]float64, size)}
	r.estimate.Store(math.Float64bits(initial))
	return r
}

// Update учитывает собранный кадр, пришедший в момент now.
// Первый кадр после Restart отсчета не дает (ok == false).
func (r *RateEstimator) Update(now time.Time) (fps float64, ok bool) {
	if !r.hasLast {
		r.last = now
		r.hasLast = true
		return r.FPS(), false
	}

	dt := now.Sub(r.last).Seconds()
	r.last = now

	r.window[r.next] = 1 / math.Max(rateEpsilon, dt)
	r.next = (r.next + 1) % len(r.window)
	if r.count < len(r.window) {
		r.count++
	}

	sum := 0.0
	for i := 0; i < r.count; i++ {
		sum += r.window[i]
	}
	mean := sum / float64(r.count)
	r.estimate.Store(math.Float64bits(mean))
	return mean, true
}

// Restart забывает момент последнего кадра. Окно отсчетов сохраняется.
func (r *RateEstimator) Restart() {
	r.hasLast = false
}

// Samples возвращает число отсчетов в окне
func (r *RateEstimator) Samples() int {
	return r.count
}

// FPS возвращает текущую сглаженную оценку
func (r *RateEstimator) FPS() float64 {
	return math.Float64frombits(r.estimate.Load())
}

// RecordingFPS возвращает оценку, ограниченную диапазоном [1, 60]
func (r *RateEstimator) RecordingFPS() float64 {
	return math.Min(MaxRecordingFPS, math.Max(MinRecordingFPS, r.FPS()))
}
