package app

import (
	"github.com/web3-frozen/nav-oracle/internal/config"
	"github.com/web3-frozen/nav-oracle/internal/fetch"
	"github.com/web3-frozen/nav-oracle/internal/nav"
	"github.com/web3-frozen/nav-oracle/internal/nav/sources"
)

// Settings maps the config and layout onto engine settings. Sources whose
// identifying input is missing are left nil so the engine skips them.
func Settings(cfg config.Config, client *fetch.Client) nav.Settings {
	l := cfg.Layout
	s := nav.Settings{
		NavAddress:     cfg.NavAddress,
		Nav:            nav.NavTarget{RecordID: l.Nav.RecordID, FundID: l.Nav.FundID, Label: l.Nav.Label},
		SnapshotFundID: l.Snapshot.FundID,
		SnapshotZone:   cfg.Location(),
		PublishedTTL:   cfg.PublishedCacheTTL,
		RunInterval:    cfg.RunInterval,
		AlertCooldown:  cfg.AlertCooldown,
	}

	sheet := func(cellRange string, emptyAsZero bool) nav.Source {
		if cfg.SpreadsheetID == "" || cellRange == "" {
			return nil
		}
		return sources.NewSheetCell(client, cfg.SpreadsheetID, cfg.SheetsAPIKey, cellRange, emptyAsZero)
	}

	for _, f := range l.Funds {
		s.Funds = append(s.Funds, nav.Fund{
			ID:       f.ID,
			Name:     f.Name,
			RecordID: f.RecordID,
			Source:   sources.NewZerion(client, f.Name, cfg.ZerionAPIKey, f.Address),
			Addend:   sheet(f.AddendRange, true),
		})
	}

	if cfg.ValidatorURL != "" {
		s.Validator = &nav.ValidatorTarget{
			FundID:   l.Validator.FundID,
			RecordID: l.Validator.RecordID,
			Label:    l.Validator.Label,
			Balance:  sources.NewBeacon(client, cfg.ValidatorURL, cfg.BeaconAPIKey),
		}
		s.Price = sources.NewBinance(client, cfg.TickerSymbol)
	}

	if cfg.NavAddress != "" {
		s.NavSource = sources.NewDeBank(client, cfg.DebankAccessKey, cfg.NavAddress)
	}
	if cfg.NavMinAddress != "" && cfg.NavMinAddress != cfg.NavAddress {
		s.NavMinSource = sources.NewDeBank(client, cfg.DebankAccessKey, cfg.NavMinAddress)
	}
	if len(cfg.DeFiAddresses) > 0 {
		s.DeFi = sources.NewZapper(client, cfg.ZapperAPIKey, cfg.DeFiAddresses...)
	}

	for _, m := range l.Mirrors {
		if src := sheet(m.Range, true); src != nil {
			s.Mirrors = append(s.Mirrors, nav.Mirror{RecordID: m.RecordID, Source: src})
		}
	}
	for _, r := range l.Snapshot.Ranges {
		if src := sheet(r.Range, false); src != nil {
			s.Snapshot = append(s.Snapshot, nav.SnapshotRange{Label: r.Label, Source: src})
		}
	}
	s.Published = sheet(l.Published.Range, false)
	return s
}
