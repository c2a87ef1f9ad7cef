package ban_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/RoModerate/romoderate/internal/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestUnbanHandlerOptionalBody(t *testing.T) {
	t.Parallel()

	var (
		fixture       = tests.NewFixture()
		mod           = tests.Moderator("100", "guild-1")
		authenticator = &tests.StaticAuthenticator{Profile: mod}
		engine        = httphelper.CreateRouter(httphelper.RouterOpts{Mode: gin.TestMode})
	)

	ban.NewHandlerBans(engine, fixture.Bans, authenticator)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	// The unban note is optional: a bodyless DELETE must succeed.
	bare := httptest.NewRequest(http.MethodDelete, "/api/ban/"+strconv.FormatInt(issued.BanID, 10), nil)
	bareRec := httptest.NewRecorder()
	engine.ServeHTTP(bareRec, bare)
	require.Equal(t, http.StatusOK, bareRec.Code)

	var lifted ban.Ban
	require.NoError(t, json.Unmarshal(bareRec.Body.Bytes(), &lifted))
	require.False(t, lifted.Active)
	require.Empty(t, lifted.UnbanReason)

	second, errSecond := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 6000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errSecond)

	withNote := httptest.NewRequest(http.MethodDelete, "/api/ban/"+strconv.FormatInt(second.BanID, 10),
		strings.NewReader(`{"reason":"resolved"}`))
	noteRec := httptest.NewRecorder()
	engine.ServeHTTP(noteRec, withNote)
	require.Equal(t, http.StatusOK, noteRec.Code)

	var liftedWithNote ban.Ban
	require.NoError(t, json.Unmarshal(noteRec.Body.Bytes(), &liftedWithNote))
	require.False(t, liftedWithNote.Active)
	require.Equal(t, "resolved", liftedWithNote.UnbanReason)
}
