package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/bot"
	"github.com/lox/bingoforbots/internal/game"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings
	Game   GameDefaults
	Bot    BotSettings
}

// rawServerConfig is the HCL shape. Blocks are pointers so a config
// file may omit any of them.
type rawServerConfig struct {
	Server *ServerSettings `hcl:"server,block"`
	Game   *GameDefaults   `hcl:"game,block"`
	Bot    *BotSettings    `hcl:"bot,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address    string `hcl:"address,optional"`
	Port       int    `hcl:"port,optional"`
	LogLevel   string `hcl:"log_level,optional"`
	LogFile    string `hcl:"log_file,optional"`
	Database   string `hcl:"database,optional"` // sqlite path, empty = in-memory
	AuthURL    string `hcl:"auth_url,optional"`
	AuthSecret string `hcl:"auth_secret,optional"`
}

// GameDefaults fills in whatever a create_game request leaves unset
type GameDefaults struct {
	Variant           string `hcl:"variant,optional"`
	MaxPlayers        int    `hcl:"max_players,optional"`
	TurnLimitSeconds  int    `hcl:"turn_limit_seconds,optional"`
	SetupLimitSeconds int    `hcl:"setup_limit_seconds,optional"`
	TimeBankSeconds   int    `hcl:"time_bank_seconds,optional"`
}

// BotSettings configures server-hosted bot opponents
type BotSettings struct {
	Difficulty        string `hcl:"difficulty,optional"`
	ThinkingDelayMsec int    `hcl:"thinking_delay_msec,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameDefaults{
			Variant:           string(bingo.Classic75),
			MaxPlayers:        2,
			TurnLimitSeconds:  30,
			SetupLimitSeconds: 120,
			TimeBankSeconds:   300,
		},
		Bot: BotSettings{
			Difficulty:        string(bot.Normal),
			ThinkingDelayMsec: 1500,
		},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw rawServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Overlay the file onto the defaults
	config := DefaultServerConfig()
	if raw.Server != nil {
		overlay(&config.Server.Address, raw.Server.Address)
		overlayInt(&config.Server.Port, raw.Server.Port)
		overlay(&config.Server.LogLevel, raw.Server.LogLevel)
		overlay(&config.Server.LogFile, raw.Server.LogFile)
		overlay(&config.Server.Database, raw.Server.Database)
		overlay(&config.Server.AuthURL, raw.Server.AuthURL)
		overlay(&config.Server.AuthSecret, raw.Server.AuthSecret)
	}
	if raw.Game != nil {
		overlay(&config.Game.Variant, raw.Game.Variant)
		overlayInt(&config.Game.MaxPlayers, raw.Game.MaxPlayers)
		overlayInt(&config.Game.TurnLimitSeconds, raw.Game.TurnLimitSeconds)
		overlayInt(&config.Game.SetupLimitSeconds, raw.Game.SetupLimitSeconds)
		overlayInt(&config.Game.TimeBankSeconds, raw.Game.TimeBankSeconds)
	}
	if raw.Bot != nil {
		overlay(&config.Bot.Difficulty, raw.Bot.Difficulty)
		overlayInt(&config.Bot.ThinkingDelayMsec, raw.Bot.ThinkingDelayMsec)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Validate checks configuration consistency
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := bingo.ParseVariant(c.Game.Variant); err != nil {
		return fmt.Errorf("game block: %w", err)
	}
	if _, err := bot.ParseDifficulty(c.Bot.Difficulty); err != nil {
		return fmt.Errorf("bot block: %w", err)
	}
	if c.Game.MaxPlayers < 2 {
		return fmt.Errorf("max_players must be at least 2, got %d", c.Game.MaxPlayers)
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GameConfig converts the game defaults block to a rules config.
func (c *ServerConfig) GameConfig() game.Config {
	variant, _ := bingo.ParseVariant(c.Game.Variant)
	difficulty, _ := bot.ParseDifficulty(c.Bot.Difficulty)
	return game.Config{
		Variant:           variant,
		MaxPlayers:        c.Game.MaxPlayers,
		BotDifficulty:     difficulty,
		TurnLimitSeconds:  c.Game.TurnLimitSeconds,
		SetupLimitSeconds: c.Game.SetupLimitSeconds,
		TimeBankSeconds:   c.Game.TimeBankSeconds,
	}
}

// ThinkingDelay returns the bot pacing delay.
func (c *ServerConfig) ThinkingDelay() time.Duration {
	return time.Duration(c.Bot.ThinkingDelayMsec) * time.Millisecond
}
