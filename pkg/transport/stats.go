package transport

import (
	"sync/atomic"
	"time"
)

// Statistics счетчики транспорта. Обновляются атомарно из горутины приема
// и управляющего потока, читаются кем угодно.
type Statistics struct {
	PacketsSent     atomic.Uint64
	PacketsReceived atomic.Uint64
	BytesSent       atomic.Uint64
	BytesReceived   atomic.Uint64
	SendErrors      atomic.Uint64
	ReceiveErrors   atomic.Uint64
	StartTime       time.Time
}

// GetUptime возвращает время работы транспорта
func (s *Statistics) GetUptime() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return time.Since(s.StartTime)
}

// GetReceiveRate возвращает среднюю скорость получения пакетов в секунду
func (s *Statistics) GetReceiveRate() float64 {
	uptime := s.GetUptime().Seconds()
	if uptime == 0 {
		return 0
	}
	return float64(s.PacketsReceived.Load()) / uptime
}
