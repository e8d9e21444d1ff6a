package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrNotActive транспорт закрыт
var ErrNotActive = errors.New("транспорт не активен")

// ErrNoRemote удаленный адрес не установлен
var ErrNoRemote = errors.New("удаленный адрес не установлен")

// NetworkErrorType определяет типы сетевых ошибок
type NetworkErrorType int

const (
	ErrorTypeTemporary  NetworkErrorType = iota // Временная ошибка (retry возможен)
	ErrorTypePermanent                          // Постоянная ошибка
	ErrorTypeTimeout                            // Таймаут чтения (нормальное поведение)
	ErrorTypeConnection                         // ICMP отказ, недоступная сеть
	ErrorTypeUnknown                            // Неклассифицированная ошибка
)

// String возвращает строковое представление типа ошибки
func (t NetworkErrorType) String() string {
	switch t {
	case ErrorTypeTemporary:
		return "temporary"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// ClassifiedError сетевая ошибка с классификацией
type ClassifiedError struct {
	Type      NetworkErrorType
	Operation string
	Err       error
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s (type: %s, retryable: %t)",
		e.Operation, e.Err.Error(), e.Type, e.Retryable)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// IsTimeout сообщает, что ошибка является истечением таймаута чтения
func IsTimeout(err error) bool {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Type == ErrorTypeTimeout
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// classifyNetworkError анализирует сетевую ошибку и возвращает классифицированную версию
func classifyNetworkError(operation string, err error) error {
	if err == nil {
		return nil
	}

	classified := &ClassifiedError{
		Operation: operation,
		Err:       err,
		Type:      ErrorTypeUnknown,
	}

	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		classified.Type = ErrorTypeTimeout
		classified.Retryable = true

	case errors.Is(err, net.ErrClosed):
		classified.Type = ErrorTypePermanent

	case isConnectionError(err):
		classified.Type = ErrorTypeConnection
		classified.Retryable = true

	case isPermanentError(err):
		classified.Type = ErrorTypePermanent

	case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR), errors.Is(err, syscall.ENOBUFS):
		classified.Type = ErrorTypeTemporary
		classified.Retryable = true
	}

	return classified
}

// isConnectionError проверяет является ли ошибка связанной с соединением.
// Для UDP это обычно ICMP port unreachable после отправки START на закрытый порт.
func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	return containsAny(err.Error(), []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"host is unreachable",
		"no route to host",
	})
}

// isPermanentError проверяет является ли ошибка постоянной
func isPermanentError(err error) bool {
	return containsAny(err.Error(), []string{
		"invalid argument",
		"address family not supported",
		"permission denied",
		"operation not supported",
	})
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
