package shift_test

import (
	"testing"

	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/shift"
	"github.com/RoModerate/romoderate/internal/tests"
	"github.com/RoModerate/romoderate/internal/ticket"
	"github.com/stretchr/testify/require"
)

func TestStartShift(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	started, errStart := fixture.Shifts.Start(t.Context(), mod, "guild-1")
	require.NoError(t, errStart)
	require.Positive(t, started.ShiftID)
	require.Equal(t, shift.StatusActive, started.Status)
	require.Nil(t, started.EndedOn)

	// One active shift per moderator per community.
	_, errRepeat := fixture.Shifts.Start(t.Context(), mod, "guild-1")
	require.ErrorIs(t, errRepeat, domain.ErrConflict)

	_, errScope := fixture.Shifts.Start(t.Context(), mod, "guild-2")
	require.ErrorIs(t, errScope, domain.ErrScopeDenied)
}

func TestStartShiftAcrossCommunities(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1", "guild-2")
	)

	_, errFirst := fixture.Shifts.Start(t.Context(), mod, "guild-1")
	require.NoError(t, errFirst)

	// The uniqueness constraint is per community, not global.
	_, errSecond := fixture.Shifts.Start(t.Context(), mod, "guild-2")
	require.NoError(t, errSecond)
}

func TestEndShift(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	_, errNone := fixture.Shifts.End(t.Context(), mod, "guild-1")
	require.ErrorIs(t, errNone, domain.ErrNotFound)

	_, errStart := fixture.Shifts.Start(t.Context(), mod, "guild-1")
	require.NoError(t, errStart)

	ended, errEnd := fixture.Shifts.End(t.Context(), mod, "guild-1")
	require.NoError(t, errEnd)
	require.Equal(t, shift.StatusCompleted, ended.Status)
	require.NotNil(t, ended.EndedOn)

	_, errRepeat := fixture.Shifts.End(t.Context(), mod, "guild-1")
	require.ErrorIs(t, errRepeat, domain.ErrNotFound)
}

func TestShiftMetricsAccumulate(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	started, errStart := fixture.Shifts.Start(t.Context(), mod, "guild-1")
	require.NoError(t, errStart)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	appeal, errSubmit := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "false positive")
	require.NoError(t, errSubmit)

	_, errReview := fixture.Appeals.Review(t.Context(), mod, appeal.AppealID, ban.AppealDenied, "stands")
	require.NoError(t, errReview)

	current, errFetch := fixture.Shifts.ByID(t.Context(), mod, started.ShiftID)
	require.NoError(t, errFetch)
	require.Equal(t, 2, current.Metrics.ActionsCount)
	require.Equal(t, 1, current.Metrics.BansIssued)
	require.Equal(t, 1, current.Metrics.AppealsReviewed)

	// Lifting a ban counts as work done, but has no dedicated counter.
	_, errUnban := fixture.Bans.Unban(t.Context(), mod, issued.BanID, "resolved")
	require.NoError(t, errUnban)

	current, errFetch = fixture.Shifts.ByID(t.Context(), mod, started.ShiftID)
	require.NoError(t, errFetch)
	require.Equal(t, 3, current.Metrics.ActionsCount)
	require.Zero(t, current.Metrics.ReportsProcessed)

	// Closing a report-category ticket lands in reports_processed instead of
	// tickets_handled.
	report, errCreate := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "exploiter in lobby", Category: ticket.CategoryReport,
	})
	require.NoError(t, errCreate)

	_, errClose := fixture.Tickets.Close(t.Context(), mod, report.TicketID)
	require.NoError(t, errClose)

	current, errFetch = fixture.Shifts.ByID(t.Context(), mod, started.ShiftID)
	require.NoError(t, errFetch)
	require.Equal(t, 4, current.Metrics.ActionsCount)
	require.Equal(t, 1, current.Metrics.ReportsProcessed)
	require.Zero(t, current.Metrics.TicketsHandled)
}

func TestShiftMetricsFreezeOnEnd(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	started, errStart := fixture.Shifts.Start(t.Context(), mod, "guild-1")
	require.NoError(t, errStart)

	ended, errEnd := fixture.Shifts.End(t.Context(), mod, "guild-1")
	require.NoError(t, errEnd)
	require.Equal(t, started.ShiftID, ended.ShiftID)

	// Actions after the shift ends are silently dropped, not attributed.
	_, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	frozen, errFetch := fixture.Shifts.ByID(t.Context(), mod, started.ShiftID)
	require.NoError(t, errFetch)
	require.Zero(t, frozen.Metrics.ActionsCount)
	require.Zero(t, frozen.Metrics.BansIssued)
}

func TestShiftScopeHidesRows(t *testing.T) {
	t.Parallel()

	var (
		fixture  = tests.NewFixture()
		insider  = tests.Moderator("100", "guild-1")
		outsider = tests.Moderator("200", "guild-2")
	)

	started, errStart := fixture.Shifts.Start(t.Context(), insider, "guild-1")
	require.NoError(t, errStart)

	_, errOutside := fixture.Shifts.ByID(t.Context(), outsider, started.ShiftID)
	require.ErrorIs(t, errOutside, domain.ErrNotFound)

	visible, errQuery := fixture.Shifts.Query(t.Context(), outsider, shift.QueryOpts{ActiveOnly: true})
	require.NoError(t, errQuery)
	require.Empty(t, visible)
}
