package transport

import (
	"fmt"
	"time"
)

// Общие константы транспорта
const (
	// DefaultBufferSize размер буфера чтения. Больше максимальной датаграммы сенсора (1472 байта).
	DefaultBufferSize = 2048

	// DefaultReceiveTimeout таймаут чтения. Ограничивает задержку реакции горутины приема на команды.
	DefaultReceiveTimeout = 100 * time.Millisecond

	// DefaultSendTimeout таймаут отправки управляющих датаграмм
	DefaultSendTimeout = 50 * time.Millisecond

	// DefaultSocketRecvBuffer буфер приема сокета. Кадр 320x240 это 105 датаграмм подряд.
	DefaultSocketRecvBuffer = 1 << 20

	// DSCP значения согласно RFC 4594
	DSCPAssuredForwarding = 34 // AF41 для потокового видео
	DSCPBestEffort        = 0
)

// Config конфигурация UDP транспорта
type Config struct {
	LocalAddr        string        // Локальный адрес, например ":5000"
	RemoteAddr       string        // Адрес сенсора, например "192.168.11.2:5000"
	BufferSize       int           // Размер буфера чтения одной датаграммы
	ReceiveTimeout   time.Duration // Таймаут чтения
	SendTimeout      time.Duration // Таймаут отправки
	SocketRecvBuffer int           // SO_RCVBUF (0 = не менять)
	ReuseAddr        bool          // SO_REUSEADDR перед bind. Выключено: занятый порт дает ошибку bind
	DSCP             int           // DSCP маркировка исходящих датаграмм
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		BufferSize:       DefaultBufferSize,
		ReceiveTimeout:   DefaultReceiveTimeout,
		SendTimeout:      DefaultSendTimeout,
		SocketRecvBuffer: DefaultSocketRecvBuffer,
		ReuseAddr:        false,
		DSCP:             DSCPAssuredForwarding,
	}
}

// ApplyDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) ApplyDefaults() {
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ReceiveTimeout == 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = DefaultSendTimeout
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.LocalAddr == "" {
		return fmt.Errorf("локальный адрес обязателен")
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("размер буфера не может быть отрицательным")
	}
	if c.ReceiveTimeout < 0 || c.SendTimeout < 0 {
		return fmt.Errorf("таймауты не могут быть отрицательными")
	}
	if c.SocketRecvBuffer < 0 {
		return fmt.Errorf("размер буфера сокета не может быть отрицательным")
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("DSCP должен быть в диапазоне 0-63")
	}
	return nil
}
