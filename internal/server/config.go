package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/cardroom/holdemd/internal/engine"
)

// ServerConfig is the complete process configuration.
type ServerConfig struct {
	Server      ServerSettings     `hcl:"server,block"`
	Tables      []TableConfig      `hcl:"table,block"`
	Persistence *PersistenceConfig `hcl:"persistence,block"`
	AntiCheat   *AntiCheatConfig   `hcl:"anticheat,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// TableConfig defines one cash game table.
type TableConfig struct {
	Name       string `hcl:"name,label"`
	MaxPlayers int    `hcl:"max_players,optional"`
	SmallBlind int64  `hcl:"small_blind"`
	BigBlind   int64  `hcl:"big_blind"`
	BuyInMin   int64  `hcl:"buy_in_min,optional"`
	BuyInMax   int64  `hcl:"buy_in_max,optional"`

	RakePercent float64 `hcl:"rake_percent,optional"`
	RakeCap     int64   `hcl:"rake_cap,optional"`

	ActionTimeoutSeconds int `hcl:"action_timeout_seconds,optional"`
	TimeBankSeconds      int `hcl:"time_bank_seconds,optional"`
	TimeBanksPerHand     int `hcl:"time_banks_per_hand,optional"`
	StreetDelayMillis    int `hcl:"street_delay_ms,optional"`
	NextHandDelayMillis  int `hcl:"next_hand_delay_ms,optional"`
}

// PersistenceConfig enables settlement storage.
type PersistenceConfig struct {
	PostgresDSN string `hcl:"postgres_dsn"`
}

// AntiCheatConfig tunes the join screening.
type AntiCheatConfig struct {
	BannedAddrs       []string `hcl:"banned_addrs,optional"`
	MaxPlayersPerAddr int      `hcl:"max_players_per_addr,optional"`
}

// DefaultServerConfig returns the configuration used when no file exists.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Tables: []TableConfig{
			{
				Name:       "main",
				MaxPlayers: 6,
				SmallBlind: 1,
				BigBlind:   2,
			},
		},
	}
}

// LoadServerConfig reads an HCL configuration file. A missing file yields
// the defaults.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		cfg := DefaultServerConfig()
		applyDefaults(cfg)
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(config *ServerConfig) {
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}

	for i := range config.Tables {
		t := &config.Tables[i]
		if t.MaxPlayers == 0 {
			t.MaxPlayers = 6
		}
		if t.BuyInMin == 0 {
			t.BuyInMin = t.BigBlind * 50
		}
		if t.BuyInMax == 0 {
			t.BuyInMax = t.BigBlind * 500
		}
		if t.ActionTimeoutSeconds == 0 {
			t.ActionTimeoutSeconds = 30
		}
		if t.TimeBankSeconds == 0 {
			t.TimeBankSeconds = 20
		}
		if t.TimeBanksPerHand == 0 {
			t.TimeBanksPerHand = 3
		}
		if t.StreetDelayMillis == 0 {
			t.StreetDelayMillis = 1200
		}
		if t.NextHandDelayMillis == 0 {
			t.NextHandDelayMillis = 4000
		}
	}
}

// EngineConfig converts one table block into the engine's configuration.
func (t TableConfig) EngineConfig() engine.Config {
	return engine.Config{
		MaxPlayers: t.MaxPlayers,
		SmallBlind: t.SmallBlind,
		BigBlind:   t.BigBlind,
		MinBuyIn:   t.BuyInMin,
		MaxBuyIn:   t.BuyInMax,
		Rake: engine.RakeConfig{
			Percent: t.RakePercent,
			Cap:     t.RakeCap,
		},
		ActionTimeout:    time.Duration(t.ActionTimeoutSeconds) * time.Second,
		TimeBankDuration: time.Duration(t.TimeBankSeconds) * time.Second,
		TimeBanksPerHand: t.TimeBanksPerHand,
		StreetDelay:      time.Duration(t.StreetDelayMillis) * time.Millisecond,
		NextHandDelay:    time.Duration(t.NextHandDelayMillis) * time.Millisecond,
	}
}

// ListenAddr joins the configured address and port.
func (s ServerSettings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}
