package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	ratesapp "rentdesk/internal/app/handlers/rates"
)

const fixtureActor = "system:fixtures"

type unitFixture struct {
	ID               string `json:"id"`
	PropertyID       string `json:"property_id"`
	Name             string `json:"name"`
	Capacity         int    `json:"capacity"`
	BaseNightlyCents int64  `json:"base_nightly_cents"`
	Currency         string `json:"currency"`
}

// loadFixtures upserts the units listed in a JSON file. A missing path is not an error.
func (a *application) loadFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("unit fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []unitFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		cmd := ratesapp.UpsertUnitCommand{
			ActorID:          fixtureActor,
			UnitID:           fx.ID,
			PropertyID:       fx.PropertyID,
			Name:             fx.Name,
			Capacity:         fx.Capacity,
			BaseNightlyCents: fx.BaseNightlyCents,
			Currency:         fx.Currency,
		}
		if _, err := commands.Dispatch[ratesapp.UpsertUnitCommand, dto.Unit](ctx, a.buses.Commands, cmd); err != nil {
			logger.Error("fixture unit rejected", "unit_id", fx.ID, "error", err)
			continue
		}
		logger.Info("unit fixture imported", "unit_id", fx.ID)
	}
	return nil
}
