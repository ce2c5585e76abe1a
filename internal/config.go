package internal

import (
	"fmt"
	"time"
)

type Config struct {
	HTTPPort             int           `env:"HTTP_PORT,required=true"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	InternalAPIKey       string        `env:"INTERNAL_API_KEY,required=true"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	LaneIdleTimeout      time.Duration `env:"LANE_IDLE_TIMEOUT,default=1m"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	WriteWait            time.Duration `env:"WRITE_WAIT,default=10s"`
	PongWait             time.Duration `env:"PONG_WAIT,default=60s"`

	// Presence fan-out to other services, both optional
	NatsURL           string        `env:"NATS_URL"`
	NatsSubjectPrefix string        `env:"NATS_SUBJECT_PREFIX,default=dm"`
	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB,default=0"`
	RedisPresenceTTL  time.Duration `env:"REDIS_PRESENCE_TTL,default=0s"`
}

// Validate catches values the env tags cannot express.
func (c Config) Validate() error {
	switch {
	case c.BufferSize <= 0:
		return fmt.Errorf("BUFFER_SIZE must be positive, got %d", c.BufferSize)
	case c.ConnectionBufferSize <= 0:
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	case c.MaxContentLength <= 0:
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	case len(c.JWTSecret) < 32:
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes long")
	case c.PongWait <= 0 || c.WriteWait <= 0:
		return fmt.Errorf("PONG_WAIT and WRITE_WAIT must be positive")
	}
	return nil
}
