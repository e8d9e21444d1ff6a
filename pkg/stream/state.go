package stream

import (
	"context"

	"github.com/looplab/fsm"
)

// State состояние сессии просмотра
type State int

const (
	// StateDisconnected сокет закрыт
	StateDisconnected State = iota
	// StateConnected сокет открыт, поток не запрошен
	StateConnected
	// StateStreaming сенсору отправлен START, кадры принимаются
	StateStreaming
)

// Имена состояний и событий конечного автомата
const (
	fsmStateDisconnected = "disconnected"
	fsmStateConnected    = "connected"
	fsmStateStreaming    = "streaming"

	eventConnect    = "connect"
	eventStart      = "start"
	eventStop       = "stop"
	eventDisconnect = "disconnect"
)

// String возвращает строковое представление состояния
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	case StateStreaming:
		return "Streaming"
	default:
		return "Unknown"
	}
}

// MarshalText для JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func stringToState(s string) State {
	switch s {
	case fsmStateConnected:
		return StateConnected
	case fsmStateStreaming:
		return StateStreaming
	default:
		return StateDisconnected
	}
}

// newSessionFSM создает автомат Disconnected -> Connected -> Streaming.
// Флаг записи ортогонален автомату и хранится контроллером.
func newSessionFSM(onTransition func(e *fsm.Event)) *fsm.FSM {
	return fsm.NewFSM(
		fsmStateDisconnected,
		fsm.Events{
			{Name: eventConnect, Src: []string{fsmStateDisconnected}, Dst: fsmStateConnected},
			{Name: eventStart, Src: []string{fsmStateConnected}, Dst: fsmStateStreaming},
			{Name: eventStop, Src: []string{fsmStateStreaming}, Dst: fsmStateConnected},
			{Name: eventDisconnect, Src: []string{fsmStateConnected}, Dst: fsmStateDisconnected},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onTransition != nil {
					onTransition(e)
				}
			},
		},
	)
}
