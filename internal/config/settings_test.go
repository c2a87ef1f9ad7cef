package config_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/RoModerate/romoderate/internal/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	errMissing := config.Settings{}.Validate()
	require.ErrorIs(t, errMissing, domain.ErrValidation)

	// Enabling enforcement without platform credentials is a dead config.
	errNoKey := config.Settings{CommunityID: "guild-1", EnforcementEnabled: true}.Validate()
	require.ErrorIs(t, errNoKey, domain.ErrValidation)

	errOK := config.Settings{
		CommunityID: "guild-1", EnforcementEnabled: true,
		RobloxUniverseID: 123456, RobloxAPIKey: "key",
	}.Validate()
	require.NoError(t, errOK)
}

func TestConfigurationWriteAndCommunity(t *testing.T) {
	t.Parallel()

	fixture := tests.NewFixture()

	_, errInvalid := fixture.Config.Write(t.Context(), config.Settings{})
	require.ErrorIs(t, errInvalid, domain.ErrValidation)

	saved, errSave := fixture.Config.Write(t.Context(), config.Settings{
		CommunityID: "guild-1", LogChannelID: "chan-1",
	})
	require.NoError(t, errSave)
	require.Equal(t, "chan-1", saved.LogChannelID)

	cached, errCached := fixture.Config.Community(t.Context(), "guild-1")
	require.NoError(t, errCached)
	require.Equal(t, "chan-1", cached.LogChannelID)
}

func TestConfigurationReload(t *testing.T) {
	t.Parallel()

	var (
		fixture  = tests.NewFixture()
		settings = config.Settings{CommunityID: "guild-1", LogChannelID: "chan-1"}
	)

	require.NoError(t, fixture.Settings.Save(t.Context(), &settings))
	require.NoError(t, fixture.Config.Reload(t.Context()))

	loaded, errLoaded := fixture.Config.Community(t.Context(), "guild-1")
	require.NoError(t, errLoaded)
	require.Equal(t, "chan-1", loaded.LogChannelID)
}

func TestCommunityWithoutSavedSettings(t *testing.T) {
	t.Parallel()

	fixture := tests.NewFixture()

	_, errMissing := fixture.Config.Community(t.Context(), "guild-1")
	require.ErrorIs(t, errMissing, domain.ErrNotFound)
}

func TestSettingsHandlerMissingRow(t *testing.T) {
	t.Parallel()

	var (
		fixture       = tests.NewFixture()
		mod           = tests.Moderator("100", "guild-1")
		authenticator = &tests.StaticAuthenticator{Profile: mod}
		engine        = httphelper.CreateRouter(httphelper.RouterOpts{Mode: gin.TestMode})
	)

	config.NewHandlerSettings(engine, fixture.Config, authenticator)

	getReq := httptest.NewRequest(http.MethodGet, "/api/community/guild-1/settings", nil)
	getRec := httptest.NewRecorder()
	engine.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestSettingsHandlerBlanksAPIKey(t *testing.T) {
	t.Parallel()

	var (
		fixture       = tests.NewFixture()
		mod           = tests.Moderator("100", "guild-1")
		authenticator = &tests.StaticAuthenticator{Profile: mod}
		engine        = httphelper.CreateRouter(httphelper.RouterOpts{Mode: gin.TestMode})
	)

	config.NewHandlerSettings(engine, fixture.Config, authenticator)

	putBody := `{"log_channel_id":"chan-1","enforcement_enabled":true,"roblox_universe_id":123456,"roblox_api_key":"secret"}`
	putReq := httptest.NewRequest(http.MethodPut, "/api/community/guild-1/settings", strings.NewReader(putBody))
	putRec := httptest.NewRecorder()
	engine.ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusOK, putRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/api/community/guild-1/settings", nil)
	getRec := httptest.NewRecorder()
	engine.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var body config.Settings
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &body))
	require.Equal(t, "chan-1", body.LogChannelID)
	require.True(t, body.EnforcementEnabled)
	// The key is write-only.
	require.Empty(t, body.RobloxAPIKey)

	outsideReq := httptest.NewRequest(http.MethodGet, "/api/community/guild-2/settings", nil)
	outsideRec := httptest.NewRecorder()
	engine.ServeHTTP(outsideRec, outsideReq)
	require.Equal(t, http.StatusForbidden, outsideRec.Code)
}
