package config

import (
	"context"
	"errors"
	"time"

	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/domain"
)

type PostgresSettingsRepository struct {
	db database.Database
}

func NewSettingsRepository(db database.Database) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

func (r *PostgresSettingsRepository) Get(ctx context.Context, communityID string) (Settings, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.
		Builder().
		Select("community_id", "log_channel_id", "appeal_channel_id", "ticket_channel_id",
			"roblox_universe_id", "roblox_api_key", "enforcement_enabled", "created_on", "updated_on").
		From("community_settings").
		Where("community_id = ?", communityID))
	if errRow != nil {
		return Settings{}, database.DBErr(errRow)
	}

	var settings Settings
	if errScan := row.Scan(&settings.CommunityID, &settings.LogChannelID, &settings.AppealChannelID,
		&settings.TicketChannelID, &settings.RobloxUniverseID, &settings.RobloxAPIKey,
		&settings.EnforcementEnabled, &settings.CreatedOn, &settings.UpdatedOn); errScan != nil {
		wrapped := database.DBErr(errScan)
		if errors.Is(wrapped, database.ErrNoResult) {
			return Settings{}, domain.ErrNotFound
		}

		return Settings{}, wrapped
	}

	return settings, nil
}

func (r *PostgresSettingsRepository) Save(ctx context.Context, settings *Settings) error {
	now := time.Now()
	settings.UpdatedOn = now

	if settings.CreatedOn.IsZero() {
		settings.CreatedOn = now
	}

	query := r.db.
		Builder().
		Insert("community_settings").
		Columns("community_id", "log_channel_id", "appeal_channel_id", "ticket_channel_id",
			"roblox_universe_id", "roblox_api_key", "enforcement_enabled", "created_on", "updated_on").
		Values(settings.CommunityID, settings.LogChannelID, settings.AppealChannelID,
			settings.TicketChannelID, settings.RobloxUniverseID, settings.RobloxAPIKey,
			settings.EnforcementEnabled, settings.CreatedOn, settings.UpdatedOn).
		Suffix(`ON CONFLICT (community_id) DO UPDATE SET
			log_channel_id = EXCLUDED.log_channel_id,
			appeal_channel_id = EXCLUDED.appeal_channel_id,
			ticket_channel_id = EXCLUDED.ticket_channel_id,
			roblox_universe_id = EXCLUDED.roblox_universe_id,
			roblox_api_key = EXCLUDED.roblox_api_key,
			enforcement_enabled = EXCLUDED.enforcement_enabled,
			updated_on = EXCLUDED.updated_on`)

	return database.DBErr(r.db.ExecInsertBuilder(ctx, query))
}

func (r *PostgresSettingsRepository) All(ctx context.Context) ([]Settings, error) {
	rows, errRows := r.db.QueryBuilder(ctx, r.db.
		Builder().
		Select("community_id", "log_channel_id", "appeal_channel_id", "ticket_channel_id",
			"roblox_universe_id", "roblox_api_key", "enforcement_enabled", "created_on", "updated_on").
		From("community_settings"))
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var collected []Settings

	for rows.Next() {
		var settings Settings
		if errScan := rows.Scan(&settings.CommunityID, &settings.LogChannelID, &settings.AppealChannelID,
			&settings.TicketChannelID, &settings.RobloxUniverseID, &settings.RobloxAPIKey,
			&settings.EnforcementEnabled, &settings.CreatedOn, &settings.UpdatedOn); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		collected = append(collected, settings)
	}

	return collected, nil
}
