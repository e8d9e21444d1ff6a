package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateEstimatorConverges(t *testing.T) {
	r := NewRateEstimator(DefaultRateWindow, DefaultFPS)
	now := time.Unix(1700000000, 0)

	_, ok := r.Update(now)
	assert.False(t, ok, "первый кадр не дает отсчета")

	for i := 0; i < 40; i++ {
		now = now.Add(40 * time.Millisecond)
		_, ok = r.Update(now)
		require.True(t, ok)
	}

	assert.Equal(t, DefaultRateWindow, r.Samples(), "окно ограничено 30 отсчетами")
	assert.InDelta(t, 25.0, r.FPS(), 1e-6)
}

func TestRateEstimatorWindowSlides(t *testing.T) {
	r := NewRateEstimator(30, DefaultFPS)
	now := time.Unix(0, 0)
	r.Update(now)

	// 30 отсчетов по 100ms, затем 30 по 20ms: старые отсчеты должны уйти из окна
	for i := 0; i < 30; i++ {
		now = now.Add(100 * time.Millisecond)
		r.Update(now)
	}
	assert.InDelta(t, 10.0, r.FPS(), 1e-6)

	for i := 0; i < 15; i++ {
		now = now.Add(20 * time.Millisecond)
		r.Update(now)
	}
	assert.InDelta(t, 30.0, r.FPS(), 1e-6, "половина окна по 10 fps, половина по 50 fps")

	for i := 0; i < 15; i++ {
		now = now.Add(20 * time.Millisecond)
		r.Update(now)
	}
	assert.InDelta(t, 50.0, r.FPS(), 1e-6)
}

func TestRateEstimatorRestart(t *testing.T) {
	r := NewRateEstimator(DefaultRateWindow, DefaultFPS)
	now := time.Unix(0, 0)
	r.Update(now)
	now = now.Add(50 * time.Millisecond)
	r.Update(now)
	require.Equal(t, 1, r.Samples())

	r.Restart()

	// Пауза между потоками не должна превратиться в отсчет
	now = now.Add(10 * time.Second)
	_, ok := r.Update(now)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Samples())
	assert.InDelta(t, 20.0, r.FPS(), 1e-6)
}

func TestRateEstimatorInitialAndClamp(t *testing.T) {
	r := NewRateEstimator(DefaultRateWindow, DefaultFPS)
	assert.Equal(t, DefaultFPS, r.FPS(), "до первого отсчета используется начальная оценка")
	assert.Equal(t, DefaultFPS, r.RecordingFPS())

	now := time.Unix(0, 0)
	r.Update(now)
	r.Update(now) // dt = 0 ограничивается epsilon
	assert.Equal(t, MaxRecordingFPS, r.RecordingFPS())
	assert.Greater(t, r.FPS(), 1e5)

	slow := NewRateEstimator(DefaultRateWindow, DefaultFPS)
	slow.Update(now)
	slow.Update(now.Add(5 * time.Second))
	assert.InDelta(t, 0.2, slow.FPS(), 1e-9)
	assert.Equal(t, MinRecordingFPS, slow.RecordingFPS())
}
