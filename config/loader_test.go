package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 0\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Broadcast.QueueSize != DefaultQueueSize {
		t.Errorf("queueSize = %d, want default %d", cfg.Broadcast.QueueSize, DefaultQueueSize)
	}
	if cfg.Ingest.RetryAttempts != DefaultRetryAttempts {
		t.Errorf("retryAttempts = %d, want default %d", cfg.Ingest.RetryAttempts, DefaultRetryAttempts)
	}
	if cfg.Storage.Backend != DefaultBackend {
		t.Errorf("backend = %s, want %s", cfg.Storage.Backend, DefaultBackend)
	}
}

func TestParseFull(t *testing.T) {
	doc := `
server:
  port: 9090
broadcast:
  queueSize: 64
ingest:
  retryAttempts: 5
  retryBackoffMS: 100
storage:
  backend: redis
  redis:
    addr: redis.internal:6379
    db: 2
feed:
  vehiclePositionsURL: https://transit.example/vp.pbf
  readIntervalMS: 10000
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Broadcast.QueueSize != 64 {
		t.Errorf("unexpected cfg: %+v", cfg)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.Redis.Addr != "redis.internal:6379" {
		t.Errorf("storage cfg: %+v", cfg.Storage)
	}
	if cfg.Feed.ReadIntervalMS != 10000 {
		t.Errorf("feed cfg: %+v", cfg.Feed)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"negative port", "server:\n  port: -1\n"},
		{"bad backend", "storage:\n  backend: cassandra\n"},
		{"bad feed url", "feed:\n  vehiclePositionsURL: not-a-url\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("Parse should fail")
			}
		})
	}
}
