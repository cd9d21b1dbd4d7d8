package config

// ServerConfig contains the HTTP API server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"omitempty,gt=0"`
}

// BroadcastConfig tunes the observer fan-out
type BroadcastConfig struct {
	// QueueSize is the per-observer outbound buffer. When an
	// observer's buffer is full the oldest queued delta is dropped.
	QueueSize int `yaml:"queueSize" validate:"omitempty,gte=1"`
}

// IngestConfig tunes the ingestion gateway's storage retry behaviour
type IngestConfig struct {
	RetryAttempts  int `yaml:"retryAttempts" validate:"gte=0"`
	RetryBackoffMS int `yaml:"retryBackoffMS" validate:"gte=0"`
}

// RedisConfig points at the Redis instance backing the position store
// when storage.backend is "redis"
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db" validate:"gte=0"`
}

// StorageConfig selects the position store backend
type StorageConfig struct {
	Backend string      `yaml:"backend" validate:"omitempty,oneof=memory redis"`
	Redis   RedisConfig `yaml:"redis"`
}

// FeedConfig configures the optional GTFS-RT VehiclePositions poller
type FeedConfig struct {
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	ReadIntervalMS      int    `yaml:"readIntervalMS" validate:"gte=0"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Storage   StorageConfig   `yaml:"storage"`
	Feed      FeedConfig      `yaml:"feed"`
}
