package ban_test

import (
	"sync"
	"testing"
	"time"

	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestIssueBan(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, PlayerName: "builderman",
		Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)
	require.Positive(t, issued.BanID)
	require.True(t, issued.Active)
	require.Equal(t, "100", issued.IssuedBy)
	require.Nil(t, issued.ValidUntil)

	fetched, errFetch := fixture.Bans.ByID(t.Context(), mod, issued.BanID)
	require.NoError(t, errFetch)
	require.Equal(t, issued.BanID, fetched.BanID)
}

func TestIssueBanValidation(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	_, errEmptyReason := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent,
	})
	require.ErrorIs(t, errEmptyReason, domain.ErrValidation)

	_, errNoDuration := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Temporary, Reason: "spamming",
	})
	require.ErrorIs(t, errNoDuration, domain.ErrValidation)

	_, errScope := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-2", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.ErrorIs(t, errScope, domain.ErrScopeDenied)
}

func TestIssueBanSupersedes(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	first, errFirst := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Temporary,
		Reason: "spamming", DurationSeconds: 3600,
	})
	require.NoError(t, errFirst)

	second, errSecond := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errSecond)

	prior, errPrior := fixture.Bans.ByID(t.Context(), mod, first.BanID)
	require.NoError(t, errPrior)
	require.False(t, prior.Active)
	require.Equal(t, "superseded", prior.UnbanReason)

	active, errActive := fixture.Bans.Query(t.Context(), mod, ban.QueryOpts{PlayerID: 5000, ActiveOnly: true})
	require.NoError(t, errActive)
	require.Len(t, active, 1)
	require.Equal(t, second.BanID, active[0].BanID)
}

func TestIssueBanConcurrent(t *testing.T) {
	t.Parallel()

	var (
		fixture   = tests.NewFixture()
		mod       = tests.Moderator("100", "guild-1")
		waitGroup sync.WaitGroup
		errs      = make(chan error, 10)
	)

	for range 10 {
		waitGroup.Go(func() {
			_, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
				CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
			})
			errs <- errIssue
		})
	}

	waitGroup.Wait()
	close(errs)

	for errIssue := range errs {
		require.NoError(t, errIssue)
	}

	active, errActive := fixture.Bans.Query(t.Context(), mod, ban.QueryOpts{PlayerID: 5000, ActiveOnly: true})
	require.NoError(t, errActive)
	require.Len(t, active, 1)
}

func TestUnban(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	lifted, errUnban := fixture.Bans.Unban(t.Context(), mod, issued.BanID, "appealed via dm")
	require.NoError(t, errUnban)
	require.False(t, lifted.Active)
	require.Equal(t, "appealed via dm", lifted.UnbanReason)

	// A repeat unban is an invalid transition, not a silent success.
	_, errRepeat := fixture.Bans.Unban(t.Context(), mod, issued.BanID, "again")
	require.ErrorIs(t, errRepeat, domain.ErrInvalidState)

	_, errMissing := fixture.Bans.Unban(t.Context(), mod, 99999, "")
	require.ErrorIs(t, errMissing, domain.ErrNotFound)
}

func TestBanScopeHidesRows(t *testing.T) {
	t.Parallel()

	var (
		fixture  = tests.NewFixture()
		insider  = tests.Moderator("100", "guild-1")
		outsider = tests.Moderator("200", "guild-2")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), insider, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	// Out of scope bans are indistinguishable from missing ones.
	_, errOutside := fixture.Bans.ByID(t.Context(), outsider, issued.BanID)
	require.ErrorIs(t, errOutside, domain.ErrNotFound)

	visible, errQuery := fixture.Bans.Query(t.Context(), outsider, ban.QueryOpts{PlayerID: 5000})
	require.NoError(t, errQuery)
	require.Empty(t, visible)
}

func TestAddEvidence(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
		Evidence: []string{"https://example.com/clip-1"},
	})
	require.NoError(t, errIssue)

	updated, errAppend := fixture.Bans.AddEvidence(t.Context(), mod, issued.BanID, "https://example.com/clip-2")
	require.NoError(t, errAppend)
	require.Equal(t, []string{"https://example.com/clip-1", "https://example.com/clip-2"}, updated.Evidence)

	_, errEmpty := fixture.Bans.AddEvidence(t.Context(), mod, issued.BanID, "  ")
	require.ErrorIs(t, errEmpty, domain.ErrValidation)
}

func TestTemporaryBanExpiry(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Temporary,
		Reason: "spamming", DurationSeconds: 60,
	})
	require.NoError(t, errIssue)
	require.NotNil(t, issued.ValidUntil)

	// Lapsed bans fall out of active queries even before the sweeper runs.
	require.False(t, issued.InForce(time.Now().Add(time.Hour)))

	expired, errSweep := fixture.BanRepo.SweepExpired(t.Context(), time.Now().Add(time.Hour))
	require.NoError(t, errSweep)
	require.Len(t, expired, 1)
	require.False(t, expired[0].Active)

	swept, errFetch := fixture.Bans.ByID(t.Context(), mod, issued.BanID)
	require.NoError(t, errFetch)
	require.False(t, swept.Active)
	require.Equal(t, "expired", swept.UnbanReason)
}
