package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackTransport(t *testing.T, remote string) *UDPTransport {
	t.Helper()

	cfg := DefaultConfig()
	cfg.LocalAddr = "127.0.0.1:0"
	cfg.RemoteAddr = remote

	tr, err := NewUDPTransport(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

// TestUDPTransportSendReceive проверяет обмен датаграммами через loopback
func TestUDPTransportSendReceive(t *testing.T) {
	receiver := newLoopbackTransport(t, "")
	sender := newLoopbackTransport(t, receiver.LocalAddr().String())

	require.NoError(t, sender.SendCommand(CommandStart))

	ctx := context.Background()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		data, addr, err := receiver.Receive(ctx)
		if IsTimeout(err) {
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, []byte(CommandStart), data)
		assert.Equal(t, sender.LocalAddr().String(), addr.String())
		assert.Equal(t, uint64(1), receiver.Statistics().PacketsReceived.Load())
		assert.Equal(t, uint64(1), sender.Statistics().PacketsSent.Load())
		assert.Greater(t, receiver.Statistics().GetUptime(), time.Duration(0))
		assert.Greater(t, receiver.Statistics().GetReceiveRate(), 0.0)
		assert.Equal(t, receiver.LocalAddr().(*net.UDPAddr).Port, receiver.LocalPort())
		return
	}
	t.Fatal("❌ Таймаут: датаграмма не получена")
}

// TestUDPTransportReceiveTimeout проверяет, что чтение без данных завершается таймаутом
func TestUDPTransportReceiveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalAddr = "127.0.0.1:0"
	cfg.ReceiveTimeout = 20 * time.Millisecond

	tr, err := NewUDPTransport(cfg)
	require.NoError(t, err)
	defer tr.Close()

	start := time.Now()
	_, _, err = tr.Receive(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeout(err), "ожидался таймаут, получено: %v", err)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, uint64(0), tr.Statistics().ReceiveErrors.Load(), "таймаут не считается ошибкой")
}

func TestUDPTransportCanceledContext(t *testing.T) {
	tr := newLoopbackTransport(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUDPTransportClose(t *testing.T) {
	tr := newLoopbackTransport(t, "127.0.0.1:9")

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close(), "повторное закрытие безопасно")
	assert.False(t, tr.IsActive())

	assert.ErrorIs(t, tr.SendCommand(CommandStop), ErrNotActive)
	_, _, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestUDPTransportNoRemote(t *testing.T) {
	tr := newLoopbackTransport(t, "")
	assert.ErrorIs(t, tr.SendCommand(CommandStart), ErrNoRemote)

	require.NoError(t, tr.SetRemoteAddr("127.0.0.1:9"))
	assert.Equal(t, "127.0.0.1:9", tr.RemoteAddr().String())
}

func TestUDPTransportBindFailure(t *testing.T) {
	t.Run("порт занят сокетом без SO_REUSEADDR", func(t *testing.T) {
		busy, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		require.NoError(t, err)
		defer busy.Close()

		cfg := DefaultConfig()
		cfg.LocalAddr = busy.LocalAddr().String()

		_, err = NewUDPTransport(cfg)
		assert.Error(t, err)
	})

	t.Run("порт занят транспортом с настройками по умолчанию", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LocalAddr = "127.0.0.1:0"
		cfg.SocketRecvBuffer = 0

		first, err := NewUDPTransport(cfg)
		require.NoError(t, err)
		defer first.Close()

		cfg.LocalAddr = first.LocalAddr().String()
		second, err := NewUDPTransport(cfg)
		if err == nil {
			second.Close()
		}
		assert.Error(t, err, "второй сокет не должен делить порт с первым")
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"корректная конфигурация", func(c *Config) {}, false},
		{"пустой локальный адрес", func(c *Config) { c.LocalAddr = "" }, true},
		{"отрицательный буфер", func(c *Config) { c.BufferSize = -1 }, true},
		{"DSCP вне диапазона", func(c *Config) { c.DSCP = 64 }, true},
		{"отрицательный таймаут", func(c *Config) { c.ReceiveTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LocalAddr = ":5000"
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClassifyNetworkError(t *testing.T) {
	timeoutErr := classifyNetworkError("UDP read", &net.OpError{Op: "read", Net: "udp", Err: errTimeout{}})
	assert.True(t, IsTimeout(timeoutErr))

	closedErr := classifyNetworkError("UDP read", net.ErrClosed)
	var classified *ClassifiedError
	require.True(t, errors.As(closedErr, &classified))
	assert.Equal(t, ErrorTypePermanent, classified.Type)
	assert.False(t, IsTimeout(closedErr))

	refused := classifyNetworkError("UDP read", errors.New("read udp 127.0.0.1:5000: connection refused"))
	require.True(t, errors.As(refused, &classified))
	assert.Equal(t, ErrorTypeConnection, classified.Type)
	assert.True(t, classified.Retryable)
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }
