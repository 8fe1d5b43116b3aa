package realtime

import "time"

const (
	defaultPingInterval = 25 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultWriteWait    = 10 * time.Second
	defaultSendBuffer   = 64
	maxFrameSize        = 4096
)

// Options tunes the heartbeat and buffering of every connection.
type Options struct {
	// PingInterval is how often the server pings an idle peer. It must be
	// shorter than PongWait.
	PingInterval time.Duration
	// PongWait is how long a peer may stay silent before it is dropped.
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	return o
}
