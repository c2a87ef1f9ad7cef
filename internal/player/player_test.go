package player_test

import (
	"testing"

	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/RoModerate/romoderate/internal/player"
	"github.com/RoModerate/romoderate/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestStandingPartitionsBans(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1", "guild-2")
	)

	lifted, errLifted := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-2", PlayerID: 5000, PlayerName: "builderman",
		Kind: ban.Permanent, Reason: "spamming",
	})
	require.NoError(t, errLifted)

	_, errUnban := fixture.Bans.Unban(t.Context(), mod, lifted.BanID, "warning instead")
	require.NoError(t, errUnban)

	current, errCurrent := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, PlayerName: "builderman",
		Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errCurrent)

	standing, errStanding := fixture.Standings.ByPlayer(t.Context(), mod, 5000)
	require.NoError(t, errStanding)
	require.Equal(t, "builderman", standing.PlayerName)
	require.Len(t, standing.Active, 1)
	require.Equal(t, "guild-1", standing.Active[0].CommunityID)
	require.Len(t, standing.Historical, 1)
	require.Equal(t, "guild-2", standing.Historical[0].CommunityID)
	require.Zero(t, standing.Remaining)
}

func TestStandingActiveNewestFirst(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1", "guild-2")
	)

	older, errOlder := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errOlder)

	newer, errNewer := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-2", PlayerID: 5000, Kind: ban.Permanent, Reason: "ban evasion",
	})
	require.NoError(t, errNewer)

	standing, errStanding := fixture.Standings.ByPlayer(t.Context(), mod, 5000)
	require.NoError(t, errStanding)
	require.Len(t, standing.Active, 2)
	require.Equal(t, newer.BanID, standing.Active[0].BanID)
	require.Equal(t, older.BanID, standing.Active[1].BanID)
}

func TestStandingTruncation(t *testing.T) {
	t.Parallel()

	var (
		fixture   = tests.NewFixture()
		mod       = tests.Moderator("100", "guild-1")
		standings = player.NewStandings(fixture.Bans, 2)
	)

	for range 3 {
		issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
			CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
		})
		require.NoError(t, errIssue)

		_, errUnban := fixture.Bans.Unban(t.Context(), mod, issued.BanID, "resolved")
		require.NoError(t, errUnban)
	}

	_, errActive := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting again",
	})
	require.NoError(t, errActive)

	standing, errStanding := standings.ByPlayer(t.Context(), mod, 5000)
	require.NoError(t, errStanding)
	require.Len(t, standing.Active, 1)
	require.Len(t, standing.Historical, 1)
	require.Equal(t, 2, standing.Remaining)
}

func TestStandingScopeFiltersCommunities(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		insider = tests.Moderator("100", "guild-1", "guild-2")
		limited = tests.Moderator("200", "guild-2")
	)

	_, errFirst := fixture.Bans.Issue(t.Context(), insider, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errFirst)

	_, errSecond := fixture.Bans.Issue(t.Context(), insider, ban.Opts{
		CommunityID: "guild-2", PlayerID: 5000, Kind: ban.Permanent, Reason: "ban evasion",
	})
	require.NoError(t, errSecond)

	// The merged view only ever spans communities the requester moderates.
	standing, errStanding := fixture.Standings.ByPlayer(t.Context(), limited, 5000)
	require.NoError(t, errStanding)
	require.Len(t, standing.Active, 1)
	require.Equal(t, "guild-2", standing.Active[0].CommunityID)
}
