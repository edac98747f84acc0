// Package config loads the arena server configuration from YAML, with
// embedded defaults and environment overrides.
package config

import (
	"time"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Game     GameConfig     `yaml:"game"`
	Rooms    RoomsConfig    `yaml:"rooms"`
	PowerUps PowerUpsConfig `yaml:"powerups"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Signing  SigningConfig  `yaml:"signing"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig defines the transport listeners.
type ServerConfig struct {
	WSAddr       string        `yaml:"ws_addr"`
	SSHAddr      string        `yaml:"ssh_addr"` // Empty disables the SSH channel
	HostKeyPath  string        `yaml:"host_key_path"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// GameConfig defines simulation parameters.
type GameConfig struct {
	TickRate     int     `yaml:"tick_rate"`
	Step         float64 `yaml:"step"`
	WinScore     int     `yaml:"win_score"`
	InitialSpeed float64 `yaml:"initial_ball_speed"`
	MaxSpeed     float64 `yaml:"max_ball_speed"`
	Seed         int64   `yaml:"seed"`
}

// RoomsConfig defines room lifetimes.
type RoomsConfig struct {
	StaleAge      time.Duration `yaml:"stale_room_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	RematchTTL    time.Duration `yaml:"rematch_ttl"`
	PauseDuration time.Duration `yaml:"pause_duration"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
}

// PowerUpsConfig defines power-up effects.
type PowerUpsConfig struct {
	SpeedBoostMultiplier float64       `yaml:"speed_boost_multiplier"`
	SpeedBoostDuration   time.Duration `yaml:"speed_boost_duration"`
	MultiballDuration    time.Duration `yaml:"multiball_duration"`
}

// StorageConfig defines the SQLite database location.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig defines the escrow and inventory backend. An empty address
// runs without staking and power-up inventory.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SigningConfig holds the hex private key used for win and refund
// signatures. Empty generates an ephemeral key at startup.
type SigningConfig struct {
	PrivateKey string `yaml:"private_key"`
}

// LogConfig defines logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MatchConfig returns the simulator configuration.
func (c Config) MatchConfig() match.Config {
	return match.Config{
		WinScore:     c.Game.WinScore,
		Step:         c.Game.Step,
		InitialSpeed: c.Game.InitialSpeed,
		MaxSpeed:     c.Game.MaxSpeed,
		Seed:         c.Game.Seed,
	}
}

// CoordinatorConfig returns the orchestrator configuration.
func (c Config) CoordinatorConfig() multiplayer.CoordinatorConfig {
	return multiplayer.CoordinatorConfig{
		TickRate:      c.Game.TickRate,
		PauseDuration: c.Rooms.PauseDuration,
		StaleRoomAge:  c.Rooms.StaleAge,
		RematchTTL:    c.Rooms.RematchTTL,
		SweepInterval: c.Rooms.SweepInterval,
		CallTimeout:   c.Rooms.CallTimeout,
		PowerUps: multiplayer.PowerUpConfig{
			SpeedBoostMultiplier: c.PowerUps.SpeedBoostMultiplier,
			SpeedBoostDuration:   c.PowerUps.SpeedBoostDuration,
			MultiballDuration:    c.PowerUps.MultiballDuration,
		},
	}
}
