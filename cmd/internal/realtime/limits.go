package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit). Slide content is never
	// sent by clients, so inbound frames stay small.
	maxFrameBytes = 16 << 10 // 16 KiB
)

const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (events per window).
	rateLimitEvents = 60
	rateLimitWindow = 10 * time.Second
)
