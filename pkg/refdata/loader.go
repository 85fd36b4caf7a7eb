// Package refdata seeds the reference store (currency pairs, equities,
// options) from a YAML file at startup. Seeding is idempotent; existing rows
// are refreshed.
package refdata

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"exchange-core/pkg/db"
)

// File is the on-disk seed layout.
type File struct {
	Forex []ForexRow `yaml:"forex"`
	Stock []StockRow `yaml:"stocks"`
	// Options reference an external pricing authority's contracts.
	Options []OptionRow `yaml:"options"`
}

type ForexRow struct {
	Symbol       string  `yaml:"symbol"`
	FromCurrency string  `yaml:"from"`
	ToCurrency   string  `yaml:"to"`
	ExchangeRate float64 `yaml:"rate"`
	Ask          float64 `yaml:"ask"`
	Bid          float64 `yaml:"bid"`
}

type StockRow struct {
	Symbol string  `yaml:"symbol"`
	Price  float64 `yaml:"price"`
}

type OptionRow struct {
	ID             string  `yaml:"id"`
	Symbol         string  `yaml:"symbol"`
	OptionType     string  `yaml:"type"` // CALL or PUT
	Strike         float64 `yaml:"strike"`
	ExpirationDate string  `yaml:"expires"`
	Price          float64 `yaml:"price"`
}

// Load parses a seed file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read refdata: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse refdata: %w", err)
	}
	return &f, nil
}

// Seed writes the file's rows into the store.
func Seed(ctx context.Context, store *db.Database, f *File) error {
	for _, row := range f.Forex {
		err := store.UpsertForex(ctx, db.Forex{
			Symbol:       row.Symbol,
			FromCurrency: row.FromCurrency,
			ToCurrency:   row.ToCurrency,
			ExchangeRate: row.ExchangeRate,
			AskPrice:     row.Ask,
			BidPrice:     row.Bid,
		})
		if err != nil {
			return fmt.Errorf("seed forex %s: %w", row.Symbol, err)
		}
	}
	for _, row := range f.Stock {
		if err := store.UpsertStock(ctx, db.Stock{Symbol: row.Symbol, Price: row.Price}); err != nil {
			return fmt.Errorf("seed stock %s: %w", row.Symbol, err)
		}
	}
	for _, row := range f.Options {
		err := store.UpsertOption(ctx, db.Option{
			ID:             row.ID,
			Symbol:         row.Symbol,
			OptionType:     row.OptionType,
			Strike:         row.Strike,
			ExpirationDate: row.ExpirationDate,
			Price:          row.Price,
		})
		if err != nil {
			return fmt.Errorf("seed option %s: %w", row.ID, err)
		}
	}
	return nil
}
