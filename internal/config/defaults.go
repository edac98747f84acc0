package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/arena.yaml
var defaultArenaYAML []byte

// DefaultConfig returns the hardcoded defaults. They match defaults/arena.yaml.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			WSAddr:       ":8080",
			SSHAddr:      ":2222",
			HostKeyPath:  ".ssh/arena_ed25519",
			IdleTimeout:  10 * time.Minute,
			PingInterval: 20 * time.Second,
		},
		Game: GameConfig{
			TickRate:     60,
			Step:         0.0055,
			WinScore:     1000,
			InitialSpeed: 1.0,
			MaxSpeed:     3.0,
		},
		Rooms: RoomsConfig{
			StaleAge:      30 * time.Minute,
			SweepInterval: time.Minute,
			RematchTTL:    10 * time.Minute,
			PauseDuration: 10 * time.Second,
			CallTimeout:   10 * time.Second,
		},
		PowerUps: PowerUpsConfig{
			SpeedBoostMultiplier: 1.5,
			SpeedBoostDuration:   5 * time.Second,
			MultiballDuration:    8 * time.Second,
		},
		Storage: StorageConfig{
			Path: "~/.arena/arena.db",
		},
		Redis: RedisConfig{
			KeyPrefix: "arena:",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return defaultArenaYAML
}
