package limiter

// LimitBy types
const (
	LimitByEvent = "event" // one bucket per event name
	LimitByPeer  = "peer"  // one bucket per event name and client host
)

// Storage types
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)
