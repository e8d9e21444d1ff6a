//go:build linux

package transport

import (
	"golang.org/x/sys/unix"
)

// applyPreBindOptions выставляет опции, действующие только до bind
func applyPreBindOptions(fd uintptr, config Config) error {
	if config.ReuseAddr {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return err
		}
	}
	return nil
}

// applyVideoOptions настраивает буфер приема и QoS для видеопотока (Linux)
func applyVideoOptions(fd uintptr, config Config) error {
	if config.SocketRecvBuffer > 0 {
		// SO_RCVBUFFORCE обходит rmem_max, но требует CAP_NET_ADMIN
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, config.SocketRecvBuffer); err != nil {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, config.SocketRecvBuffer); err != nil {
				return err
			}
		}
	}

	if config.DSCP > 0 {
		// DSCP в старших 6 битах TOS. В контейнерах может быть недоступно, не критично.
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, config.DSCP<<2)
		// Приоритет 5 соответствует видео в классификации 802.1p
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PRIORITY, 5)
	}
	return nil
}
