package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/gelotto/lottery-engine/internal/engine"
	"github.com/gelotto/lottery-engine/internal/game"
)

var validate = validator.New()

type Config struct {
	Environment string        `yaml:"environment" validate:"required,oneof=production development"`
	HTTP        HTTPConfig    `yaml:"http"`
	NATS        NATSConfig    `yaml:"nats"`
	KVStore     KVStoreConfig `yaml:"kvstore" validate:"required"`
	Game        GameConfig    `yaml:"game" validate:"required"`
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type NATSConfig struct {
	// URL empty disables registry notifications.
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type KVStoreConfig struct {
	Badger BadgerConfig `yaml:"badger" validate:"required"`
}

type BadgerConfig struct {
	Directory string `yaml:"directory" validate:"required"`
	Prefix    string `yaml:"prefix"`
}

type GameConfig struct {
	ID              string `yaml:"id" validate:"required"`
	ContractAddress string `yaml:"contract_address" validate:"required"`
	Owner           string `yaml:"owner" validate:"required"`

	// TicketPrice and FundingThreshold are integer amounts in the asset's
	// smallest unit, kept as strings so yaml never mangles them.
	TicketPrice      string `yaml:"ticket_price" validate:"required"`
	FundingThreshold string `yaml:"funding_threshold"`

	Denom        string `yaml:"denom"`
	TokenAddress string `yaml:"token_address"`

	Selection           SelectionConfig `yaml:"selection" validate:"required"`
	HasDistinctWinners  bool            `yaml:"has_distinct_winners"`
	MaxTicketsPerPlayer uint32          `yaml:"max_tickets_per_player"`
	EndsAfter           string          `yaml:"ends_after"` // RFC3339, optional

	Royalties []RoyaltyConfig `yaml:"royalties"`
}

type SelectionConfig struct {
	Mode           string  `yaml:"mode" validate:"required,oneof=fixed percent"`
	WinnerCount    uint32  `yaml:"winner_count"`
	MaxWinnerCount uint32  `yaml:"max_winner_count"`
	PctSplit       []uint8 `yaml:"pct_split"`
	PctPlayerCount uint8   `yaml:"pct_player_count"`
}

type RoyaltyConfig struct {
	Address string `yaml:"address" validate:"required"`
	Pct     uint8  `yaml:"pct" validate:"required,max=100"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Params converts the game section into engine instantiation parameters.
func (gc *GameConfig) Params() (engine.Params, error) {
	price, err := decimal.NewFromString(gc.TicketPrice)
	if err != nil {
		return engine.Params{}, fmt.Errorf("parse ticket_price: %w", err)
	}

	p := engine.Params{
		ID:          gc.ID,
		TicketPrice: price,
		Asset: game.Asset{
			Denom:        gc.Denom,
			TokenAddress: gc.TokenAddress,
		},
		Selection: game.Selection{
			Kind:           game.SelectionKind(gc.Selection.Mode),
			WinnerCount:    gc.Selection.WinnerCount,
			MaxWinnerCount: gc.Selection.MaxWinnerCount,
			PctSplit:       gc.Selection.PctSplit,
			PctPlayerCount: gc.Selection.PctPlayerCount,
		},
		HasDistinctWinners:  gc.HasDistinctWinners,
		MaxTicketsPerPlayer: gc.MaxTicketsPerPlayer,
	}

	if gc.FundingThreshold != "" {
		threshold, err := decimal.NewFromString(gc.FundingThreshold)
		if err != nil {
			return engine.Params{}, fmt.Errorf("parse funding_threshold: %w", err)
		}
		p.FundingThreshold = &threshold
	}

	if gc.EndsAfter != "" {
		endsAfter, err := time.Parse(time.RFC3339, gc.EndsAfter)
		if err != nil {
			return engine.Params{}, fmt.Errorf("parse ends_after: %w", err)
		}
		p.EndsAfter = &endsAfter
	}

	for _, r := range gc.Royalties {
		p.Royalties = append(p.Royalties, game.Royalty{Address: r.Address, Pct: r.Pct})
	}

	return p, nil
}
