// Package transport реализует UDP транспорт между просмотрщиком и сенсором камеры.
//
// Транспорт владеет одним UDP сокетом: чтение фрагментов кадра выполняется
// горутиной приема с коротким таймаутом (100ms по умолчанию), а управляющие
// датаграммы START/STOP отправляются на адрес сенсора из управляющего потока.
// Сокет настраивается под потоковое видео: увеличенный буфер приема и DSCP AF41.
package transport

import (
	"context"
	"net"
)

// Управляющие команды сенсору. Ответа сенсор не присылает:
// признаком успеха служит появление или прекращение потока фрагментов.
const (
	CommandStart = "START"
	CommandStop  = "STOP"
)

// Transport интерфейс транспорта видеопотока
type Transport interface {
	// Send отправляет датаграмму на удаленный адрес
	Send(payload []byte) error
	// SendCommand отправляет управляющую команду сенсору
	SendCommand(command string) error
	// Receive ждет датаграмму не дольше ReceiveTimeout.
	// Возвращаемый срез действителен до следующего вызова Receive.
	Receive(ctx context.Context) ([]byte, net.Addr, error)
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Close() error
	IsActive() bool
}
