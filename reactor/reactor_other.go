//go:build !linux && !darwin

package reactor

import "errors"

// newPlatformReactor reports an error on platforms without an epoll or
// kqueue backend wired in. Aurora's core targets Linux and Darwin; a
// Windows IOCP backend would live here following the same Reactor
// contract but is not implemented by this port.
func newPlatformReactor() (Reactor, error) {
	return nil, errors.New("reactor: no event driver implemented for this platform")
}
