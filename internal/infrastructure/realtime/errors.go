package realtime

import "errors"

var (
	ErrUnknownConnection = errors.New("realtime: unknown connection")
	ErrConnectionClosed  = errors.New("realtime: connection closed")
	ErrSendBufferFull    = errors.New("realtime: send buffer full")
)
