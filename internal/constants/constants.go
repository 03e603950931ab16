package constants

import "time"

const (
	ServiceName = "notification-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaFetchBackoff = time.Second
)

const (
	DefaultGatewayTimeout = 5 * time.Second
	DefaultPriority       = 5
	MinPriority           = 0
	MaxPriority           = 10
)

const (
	CacheKeyPrefixServerInfo = "herald:server_info:"
	DefaultInfoCacheTTL      = 5 * time.Minute
)

const (
	DefaultMongoDBName    = "herald"
	HistoryCollectionName = "notification_history"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)
