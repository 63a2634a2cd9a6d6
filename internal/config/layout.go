package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Layout maps upstream figures onto persisted records and ledger funds.
type Layout struct {
	Funds     []FundLayout    `yaml:"funds" validate:"dive"`
	Validator ValidatorLayout `yaml:"validator"`
	Nav       NavLayout       `yaml:"nav"`
	Mirrors   []MirrorLayout  `yaml:"mirrors" validate:"dive"`
	Snapshot  SnapshotLayout  `yaml:"snapshot"`
	Published PublishedLayout `yaml:"published"`
}

// FundLayout is a wallet whose value is appended to the ledger and applied
// to RecordID, plus the optional AddendRange cell.
type FundLayout struct {
	ID          int    `yaml:"id" validate:"required"`
	Name        string `yaml:"name" validate:"required"`
	Address     string `yaml:"address" validate:"required"`
	RecordID    string `yaml:"record_id" validate:"required"`
	AddendRange string `yaml:"addend_range"`
}

type ValidatorLayout struct {
	FundID   int    `yaml:"fund_id" default:"2"`
	RecordID string `yaml:"record_id" default:"bck_assets_2_ETH2" validate:"required"`
	Label    string `yaml:"label" default:"ETH2"`
}

type NavLayout struct {
	RecordID string `yaml:"record_id" default:"nav_total" validate:"required"`
	FundID   int    `yaml:"fund_id" default:"1"`
	Label    string `yaml:"label" default:"NAV"`
}

type MirrorLayout struct {
	Range    string `yaml:"range" validate:"required"`
	RecordID string `yaml:"record_id" validate:"required"`
}

type SnapshotLayout struct {
	FundID int           `yaml:"fund_id" default:"1"`
	Ranges []RangeLayout `yaml:"ranges" validate:"dive"`
}

type RangeLayout struct {
	Range string `yaml:"range" validate:"required"`
	Label string `yaml:"label"`
}

type PublishedLayout struct {
	Range string `yaml:"range" default:"Token!C6"`
}

// DefaultLayout is used when no layout file is configured. Funds are taken
// from FUND_YIELD_ADDRESS and FUND_ASSETS_ADDRESS when set.
func DefaultLayout() Layout {
	var l Layout
	_ = defaults.Set(&l)

	if addr := os.Getenv("FUND_YIELD_ADDRESS"); addr != "" {
		l.Funds = append(l.Funds, FundLayout{
			ID: 3, Name: "yield", Address: addr,
			RecordID: "cm2uauagx000109tiw2seaoiao", AddendRange: "NAV Yield!D10",
		})
	}
	if addr := os.Getenv("FUND_ASSETS_ADDRESS"); addr != "" {
		l.Funds = append(l.Funds, FundLayout{
			ID: 2, Name: "assets", Address: addr, RecordID: "bck_assets_2",
		})
	}
	l.Mirrors = []MirrorLayout{
		{Range: "Clients!E6", RecordID: "BLCA_10005"},
		{Range: "Clients!E5", RecordID: "BLCY_10006"},
	}
	l.Snapshot.Ranges = []RangeLayout{
		{Range: "Token!C7", Label: "Token!C7"},
		{Range: "Token!C6", Label: "Token!C6"},
		{Range: "Token!C12", Label: "Token!C12"},
	}
	return l
}

// LoadLayout reads a YAML layout file. Unset fields take struct defaults.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout %s: %w", path, err)
	}
	var l Layout
	if err := defaults.Set(&l); err != nil {
		return Layout{}, fmt.Errorf("layout defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parse layout %s: %w", path, err)
	}
	for i := range l.Snapshot.Ranges {
		if l.Snapshot.Ranges[i].Label == "" {
			l.Snapshot.Ranges[i].Label = l.Snapshot.Ranges[i].Range
		}
	}
	return l, nil
}
