package stream

import (
	"errors"
	"fmt"
)

// ErrorCode определяет типизированные коды ошибок сессии просмотра.
type ErrorCode int

const (
	// Ошибки ввода и привязки (блокируют переход)
	ErrorCodeInvalidInput ErrorCode = iota + 2000
	ErrorCodeSocketBindFailure

	// Ошибки ввода-вывода во время работы
	ErrorCodeSendFailure
	ErrorCodeReceiveFailure
	ErrorCodeReassemblyMismatch

	// Ошибки приемников кадров
	ErrorCodeSinkOpenFailure
	ErrorCodeNoFrameAvailable

	// Операция недопустима в текущем состоянии
	ErrorCodeInvalidState
	// Горутина приема остановлена или не ответила
	ErrorCodeWorkerUnavailable
)

// String возвращает строковое представление кода ошибки
func (code ErrorCode) String() string {
	switch code {
	case ErrorCodeInvalidInput:
		return "InvalidInput"
	case ErrorCodeSocketBindFailure:
		return "SocketBindFailure"
	case ErrorCodeSendFailure:
		return "SendFailure"
	case ErrorCodeReceiveFailure:
		return "ReceiveFailure"
	case ErrorCodeReassemblyMismatch:
		return "ReassemblyMismatch"
	case ErrorCodeSinkOpenFailure:
		return "SinkOpenFailure"
	case ErrorCodeNoFrameAvailable:
		return "NoFrameAvailable"
	case ErrorCodeInvalidState:
		return "InvalidState"
	case ErrorCodeWorkerUnavailable:
		return "WorkerUnavailable"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(code))
	}
}

// Error ошибка сессии с кодом и контекстом
type Error struct {
	Code      ErrorCode
	Message   string
	SessionID string
	Context   map[string]interface{}
	Wrapped   error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	msg := e.Message
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	if e.SessionID != "" {
		return fmt.Sprintf("[поток:%s] сессия %s: %s", e.Code, e.SessionID, msg)
	}
	return fmt.Sprintf("[поток:%s] %s", e.Code, msg)
}

// Unwrap возвращает обернутую ошибку
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is сравнивает ошибки по коду
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// GetContext возвращает значение из контекста ошибки по ключу
func (e *Error) GetContext(key string) interface{} {
	if e.Context == nil {
		return nil
	}
	return e.Context[key]
}

// Эталонные ошибки для errors.Is
var (
	ErrInvalidInput       = &Error{Code: ErrorCodeInvalidInput, Message: "некорректные параметры"}
	ErrSocketBindFailure  = &Error{Code: ErrorCodeSocketBindFailure, Message: "не удалось открыть сокет"}
	ErrSendFailure        = &Error{Code: ErrorCodeSendFailure, Message: "ошибка отправки"}
	ErrReceiveFailure     = &Error{Code: ErrorCodeReceiveFailure, Message: "ошибка приема"}
	ErrSinkOpenFailure    = &Error{Code: ErrorCodeSinkOpenFailure, Message: "ошибка приемника кадров"}
	ErrNoFrameAvailable   = &Error{Code: ErrorCodeNoFrameAvailable, Message: "нет принятого кадра"}
	ErrInvalidState       = &Error{Code: ErrorCodeInvalidState, Message: "операция недопустима в текущем состоянии"}
	ErrWorkerUnavailable  = &Error{Code: ErrorCodeWorkerUnavailable, Message: "горутина приема недоступна"}
	ErrReassemblyMismatch = &Error{Code: ErrorCodeReassemblyMismatch, Message: "размер кадра не совпал"}
)

// newError создает ошибку сессии. kv задает пары ключ-значение контекста.
func newError(code ErrorCode, sessionID, message string, wrapped error, kv ...interface{}) *Error {
	e := &Error{
		Code:      code,
		Message:   message,
		SessionID: sessionID,
		Wrapped:   wrapped,
	}
	if len(kv) > 0 {
		e.Context = make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if key, ok := kv[i].(string); ok {
				e.Context[key] = kv[i+1]
			}
		}
	}
	return e
}

// HasErrorCode проверяет, содержит ли цепочка ошибок указанный код
func HasErrorCode(err error, code ErrorCode) bool {
	var streamErr *Error
	if errors.As(err, &streamErr) {
		return streamErr.Code == code
	}
	return false
}

// IsRecoverableError сообщает, что сессия может продолжить работу после ошибки
// без переподключения
func IsRecoverableError(err error) bool {
	var streamErr *Error
	if !errors.As(err, &streamErr) {
		return false
	}
	switch streamErr.Code {
	case ErrorCodeSendFailure, ErrorCodeReassemblyMismatch, ErrorCodeSinkOpenFailure,
		ErrorCodeNoFrameAvailable, ErrorCodeInvalidState, ErrorCodeInvalidInput:
		return true
	default:
		return false
	}
}
