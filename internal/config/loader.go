package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/paddle-arena/internal/match"
)

// Load reads the configuration, applies environment overrides and validates
// the result.
// Search order: customPath -> ~/.arena/arena.yaml -> ./configs/arena.yaml -> embedded default
func Load(customPath string) (Config, error) {
	cfg, err := loadFile(customPath)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// loadFile decodes the first configuration file found over the defaults, so
// a partial file only overrides what it names.
func loadFile(customPath string) (Config, error) {
	cfg := DefaultConfig()

	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	candidates := []string{"configs/arena.yaml"}
	if userCfgPath := userConfigPath("arena.yaml"); userCfgPath != "" {
		candidates = append([]string{userCfgPath}, candidates...)
	}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		fileCfg := cfg
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			return fileCfg, nil
		}
	}

	// Use embedded default YAML
	fileCfg := cfg
	if err := yaml.Unmarshal(defaultArenaYAML, &fileCfg); err != nil {
		return DefaultConfig(), nil // Fallback to hardcoded if embed fails
	}
	return fileCfg, nil
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".arena", filename)
}

// applyEnv applies environment overrides on top of the file configuration.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"ARENA_WS_ADDR", &cfg.Server.WSAddr},
		{"ARENA_SSH_ADDR", &cfg.Server.SSHAddr},
		{"ARENA_DB", &cfg.Storage.Path},
		{"ARENA_REDIS_ADDR", &cfg.Redis.Addr},
		{"ARENA_SIGNING_KEY", &cfg.Signing.PrivateKey},
		{"ARENA_LOG_LEVEL", &cfg.Log.Level},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"WIN_SCORE", &cfg.Game.WinScore},
		{"ARENA_TICK_RATE", &cfg.Game.TickRate},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", i.key, v, err)
		}
		*i.dst = n
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Game.TickRate <= 0 {
		errs = append(errs, errors.New("game.tick_rate must be positive"))
	}
	if c.Game.WinScore <= 0 {
		errs = append(errs, errors.New("game.win_score must be positive"))
	}
	if c.Game.Step <= 0 {
		errs = append(errs, errors.New("game.step must be positive"))
	}
	if c.Game.InitialSpeed <= 0 || c.Game.MaxSpeed < c.Game.InitialSpeed {
		errs = append(errs, errors.New("game.max_ball_speed must be at least game.initial_ball_speed"))
	}
	// A ball must not be able to jump the paddle hit zone in a single tick.
	if c.Game.Step*c.Game.MaxSpeed >= 2*match.PaddleBand {
		errs = append(errs, fmt.Errorf("game.step * game.max_ball_speed must be below %.2f", 2*match.PaddleBand))
	}
	if c.Rooms.PauseDuration <= 0 || c.Rooms.SweepInterval <= 0 {
		errs = append(errs, errors.New("rooms.pause_duration and rooms.sweep_interval must be positive"))
	}
	if c.PowerUps.SpeedBoostMultiplier < 1 {
		errs = append(errs, errors.New("powerups.speed_boost_multiplier must be at least 1"))
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	return errors.Join(errs...)
}
