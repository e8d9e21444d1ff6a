package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"
)

// UDPTransport реализует Transport поверх одного UDP сокета.
// Receive вызывается только горутиной приема; Send и Close из управляющего потока.
type UDPTransport struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr
	config     Config
	buffer     []byte
	stats      Statistics

	active bool
	mutex  sync.RWMutex
}

// NewUDPTransport создает сокет и привязывает его к LocalAddr
func NewUDPTransport(config Config) (*UDPTransport, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("невалидная конфигурация транспорта: %w", err)
	}

	var remoteAddr *net.UDPAddr
	if config.RemoteAddr != "" {
		addr, err := net.ResolveUDPAddr("udp4", config.RemoteAddr)
		if err != nil {
			return nil, fmt.Errorf("ошибка разрешения удаленного адреса: %w", err)
		}
		remoteAddr = addr
	}

	// Опции, которые должны быть выставлены до bind
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = applyPreBindOptions(fd, config)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", config.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания UDP соединения: %w", err)
	}
	conn := pc.(*net.UDPConn)

	if err := setSockOptForVideo(conn, config); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка настройки сокета: %w", err)
	}

	t := &UDPTransport{
		conn:       conn,
		remoteAddr: remoteAddr,
		config:     config,
		buffer:     make([]byte, config.BufferSize),
		active:     true,
	}
	t.stats.StartTime = time.Now()
	return t, nil
}

// Send отправляет датаграмму на адрес сенсора
func (t *UDPTransport) Send(payload []byte) error {
	t.mutex.RLock()
	active := t.active
	conn := t.conn
	remoteAddr := t.remoteAddr
	t.mutex.RUnlock()

	if !active {
		return ErrNotActive
	}
	if remoteAddr == nil {
		return ErrNoRemote
	}

	conn.SetWriteDeadline(time.Now().Add(t.config.SendTimeout))
	n, err := conn.WriteToUDP(payload, remoteAddr)
	if err != nil {
		t.stats.SendErrors.Add(1)
		return classifyNetworkError("UDP write", err)
	}

	t.stats.PacketsSent.Add(1)
	t.stats.BytesSent.Add(uint64(n))
	return nil
}

// SendCommand отправляет управляющую команду (START/STOP) сенсору
func (t *UDPTransport) SendCommand(command string) error {
	return t.Send([]byte(command))
}

// Receive ждет одну датаграмму не дольше ReceiveTimeout.
// Возвращаемый срез указывает во внутренний буфер и действителен до следующего вызова.
func (t *UDPTransport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	t.mutex.RLock()
	active := t.active
	conn := t.conn
	t.mutex.RUnlock()

	if !active {
		return nil, nil, ErrNotActive
	}

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	conn.SetReadDeadline(time.Now().Add(t.config.ReceiveTimeout))

	n, addr, err := conn.ReadFromUDP(t.buffer)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		classified := classifyNetworkError("UDP read", err)
		if !IsTimeout(classified) {
			t.stats.ReceiveErrors.Add(1)
		}
		return nil, nil, classified
	}

	t.stats.PacketsReceived.Add(1)
	t.stats.BytesReceived.Add(uint64(n))
	return t.buffer[:n], addr, nil
}

// LocalAddr возвращает локальный адрес
func (t *UDPTransport) LocalAddr() net.Addr {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// LocalPort возвращает номер локального порта (полезно при bind на порт 0)
func (t *UDPTransport) LocalPort() int {
	if addr, ok := t.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}

// RemoteAddr возвращает адрес сенсора
func (t *UDPTransport) RemoteAddr() net.Addr {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.remoteAddr == nil {
		return nil
	}
	return t.remoteAddr
}

// SetRemoteAddr устанавливает адрес сенсора
func (t *UDPTransport) SetRemoteAddr(addr string) error {
	remoteAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return fmt.Errorf("ошибка разрешения удаленного адреса: %w", err)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.remoteAddr = remoteAddr
	return nil
}

// Close закрывает сокет. Повторный вызов безопасен.
func (t *UDPTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.active {
		return nil
	}
	t.active = false

	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// IsActive проверяет активность транспорта
func (t *UDPTransport) IsActive() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.active
}

// Statistics возвращает счетчики транспорта
func (t *UDPTransport) Statistics() *Statistics {
	return &t.stats
}

// setSockOptForVideo применяет настройки после bind
func setSockOptForVideo(conn *net.UDPConn, config Config) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("не удалось получить системный сокет: %w", err)
	}

	var sockOptErr error
	err = rawConn.Control(func(fd uintptr) {
		sockOptErr = applyVideoOptions(fd, config)
	})
	if err != nil {
		return fmt.Errorf("ошибка управления сокетом: %w", err)
	}
	return sockOptErr
}
