package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/store"
	"github.com/HMasataka/livecount/pkg/transport/websocket"
)

// Config represents the application configuration
type Config struct {
	Client    ClientConfig    `json:"client" yaml:"client"`
	Reconnect ReconnectConfig `json:"reconnect" yaml:"reconnect"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Logging   logging.Config  `json:"logging" yaml:"logging"`
}

// ClientConfig represents the counter client's connection settings
type ClientConfig struct {
	URL              string        `json:"url" yaml:"url"`
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ReadTimeout      time.Duration `json:"read_timeout" yaml:"read_timeout"`
	PingInterval     time.Duration `json:"ping_interval" yaml:"ping_interval"`
	MaxMessageSize   int64         `json:"max_message_size" yaml:"max_message_size"`
	SendBufferSize   int           `json:"send_buffer_size" yaml:"send_buffer_size"`
}

// ReconnectConfig controls how the watch command retries
type ReconnectConfig struct {
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval"`
	// MaxElapsedTime of zero retries forever.
	MaxElapsedTime time.Duration `json:"max_elapsed_time" yaml:"max_elapsed_time"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig selects the server's counter store
type StoreConfig struct {
	Driver string      `json:"driver" yaml:"driver"`
	Redis  RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig represents Redis connection settings
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db"`
	Key      string `json:"key" yaml:"key"`
}

// Store drivers
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Default returns the default configuration
func Default() *Config {
	conn := websocket.DefaultConnOptions()

	return &Config{
		Client: ClientConfig{
			URL:              "ws://localhost:3000/ws",
			HandshakeTimeout: conn.HandshakeTimeout,
			WriteTimeout:     conn.WriteTimeout,
			ReadTimeout:      conn.ReadTimeout,
			PingInterval:     conn.PingInterval,
			MaxMessageSize:   conn.MaxMessageSize,
			SendBufferSize:   conn.SendBufferSize,
		},
		Reconnect: ReconnectConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: DriverMemory,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  store.DefaultRedisKey,
			},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConnOptions converts the client section to websocket options
func (c ClientConfig) ConnOptions() websocket.ConnOptions {
	options := websocket.DefaultConnOptions()
	options.HandshakeTimeout = c.HandshakeTimeout
	options.WriteTimeout = c.WriteTimeout
	options.ReadTimeout = c.ReadTimeout
	options.PingInterval = c.PingInterval
	options.MaxMessageSize = c.MaxMessageSize
	options.SendBufferSize = c.SendBufferSize
	return options
}

// Addr returns the listen address of the server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Client.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return NewConfigError("client.url", "must be a ws:// or wss:// URL")
	}

	if c.Client.ReadTimeout < 0 || c.Client.WriteTimeout < 0 || c.Client.HandshakeTimeout < 0 {
		return NewConfigError("client", "timeouts cannot be negative")
	}

	// Pings must arrive before the peer's read deadline expires.
	if c.Client.ReadTimeout > 0 && c.Client.PingInterval >= c.Client.ReadTimeout {
		return NewConfigError("client.ping_interval", "must be shorter than read_timeout")
	}

	if c.Client.MaxMessageSize <= 0 {
		return NewConfigError("client.max_message_size", "must be positive")
	}

	if c.Client.SendBufferSize <= 0 {
		return NewConfigError("client.send_buffer_size", "must be positive")
	}

	if c.Reconnect.InitialInterval <= 0 {
		return NewConfigError("reconnect.initial_interval", "must be positive")
	}

	if c.Reconnect.MaxInterval < c.Reconnect.InitialInterval {
		return NewConfigError("reconnect.max_interval", "must not be shorter than initial_interval")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	switch strings.ToLower(c.Store.Driver) {
	case DriverMemory:
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return NewConfigError("store.redis.addr", "required for the redis driver")
		}
	default:
		return NewConfigError("store.driver", "must be memory or redis")
	}

	return nil
}
