package config

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/domain"
)

var (
	ErrSettingsCommunity = errors.New("settings require a community id")
	ErrSettingsNotFound  = errors.New("no settings saved for community")
	ErrUniverseRequired  = errors.New("enforcement requires a roblox universe id and api key")
)

// Settings is the per-community feature configuration. Each feature area has
// explicit typed fields; unknown keys are rejected at the HTTP boundary rather
// than carried around in a loose settings bag.
type Settings struct {
	CommunityID        string    `json:"community_id"`
	LogChannelID       string    `json:"log_channel_id"`
	AppealChannelID    string    `json:"appeal_channel_id"`
	TicketChannelID    string    `json:"ticket_channel_id"`
	RobloxUniverseID   int64     `json:"roblox_universe_id"`
	RobloxAPIKey       string    `json:"roblox_api_key"`
	EnforcementEnabled bool      `json:"enforcement_enabled"`
	CreatedOn          time.Time `json:"created_on"`
	UpdatedOn          time.Time `json:"updated_on"`
}

// Validate is called on every write; a settings row never enters the store in
// a shape the relay cannot act on.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.CommunityID) == "" {
		return errors.Join(ErrSettingsCommunity, domain.ErrValidation)
	}

	if s.EnforcementEnabled && (s.RobloxUniverseID <= 0 || s.RobloxAPIKey == "") {
		return errors.Join(ErrUniverseRequired, domain.ErrValidation)
	}

	return nil
}

// SettingsRepository persists per-community settings.
type SettingsRepository interface {
	Get(ctx context.Context, communityID string) (Settings, error)
	Save(ctx context.Context, settings *Settings) error
	All(ctx context.Context) ([]Settings, error)
}

// Configuration couples the static config with a cache of community settings.
type Configuration struct {
	static   Static
	repo     SettingsRepository
	mu       sync.RWMutex
	settings map[string]Settings
}

func NewConfiguration(static Static, repo SettingsRepository) *Configuration {
	return &Configuration{
		static:   static,
		repo:     repo,
		settings: map[string]Settings{},
	}
}

func (c *Configuration) Static() Static {
	return c.static
}

// Reload refreshes the settings cache from the repository.
func (c *Configuration) Reload(ctx context.Context) error {
	all, errAll := c.repo.All(ctx)
	if errAll != nil {
		return errAll
	}

	next := make(map[string]Settings, len(all))
	for _, settings := range all {
		next[settings.CommunityID] = settings
	}

	c.mu.Lock()
	c.settings = next
	c.mu.Unlock()

	return nil
}

// Community returns the cached settings for a community, falling back to the
// repository on cache miss.
func (c *Configuration) Community(ctx context.Context, communityID string) (Settings, error) {
	c.mu.RLock()
	cached, found := c.settings[communityID]
	c.mu.RUnlock()

	if found {
		return cached, nil
	}

	settings, errGet := c.repo.Get(ctx, communityID)
	if errGet != nil {
		if errors.Is(errGet, database.ErrNoResult) {
			return Settings{}, errors.Join(ErrSettingsNotFound, domain.ErrNotFound)
		}

		return Settings{}, errGet
	}

	c.mu.Lock()
	c.settings[communityID] = settings
	c.mu.Unlock()

	return settings, nil
}

// Write validates and persists the settings, then updates the cache.
func (c *Configuration) Write(ctx context.Context, settings Settings) (Settings, error) {
	if errValidate := settings.Validate(); errValidate != nil {
		return Settings{}, errValidate
	}

	if errSave := c.repo.Save(ctx, &settings); errSave != nil {
		return Settings{}, errSave
	}

	c.mu.Lock()
	c.settings[settings.CommunityID] = settings
	c.mu.Unlock()

	return settings, nil
}
