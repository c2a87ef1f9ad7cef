package ban_test

import (
	"sync"
	"testing"

	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestSubmitAppeal(t *testing.T) {
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

	appeal, errSubmit := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "it was my brother")
	require.NoError(t, errSubmit)
	require.Positive(t, appeal.AppealID)
	require.Equal(t, issued.BanID, appeal.BanID)
	require.Equal(t, "guild-1", appeal.CommunityID)
	require.Equal(t, ban.AppealPending, appeal.Status)
}

func TestSubmitAppealValidation(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	_, errEmpty := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "   ")
	require.ErrorIs(t, errEmpty, domain.ErrValidation)

	_, errMissing := fixture.Appeals.Submit(t.Context(), "5000", 99999, "please")
	require.ErrorIs(t, errMissing, domain.ErrNotFound)

	_, errUnban := fixture.Bans.Unban(t.Context(), mod, issued.BanID, "resolved")
	require.NoError(t, errUnban)

	// A lifted ban has nothing left to appeal.
	_, errInactive := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "please")
	require.ErrorIs(t, errInactive, domain.ErrInvalidState)
}

func TestSubmitAppealDuplicatePending(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	_, errFirst := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "first appeal")
	require.NoError(t, errFirst)

	_, errSecond := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "second appeal")
	require.ErrorIs(t, errSecond, domain.ErrConflict)
}

func TestReviewAppealApprove(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	appeal, errSubmit := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "false positive")
	require.NoError(t, errSubmit)

	reviewed, errReview := fixture.Appeals.Review(t.Context(), mod, appeal.AppealID, ban.AppealApproved, "confirmed")
	require.NoError(t, errReview)
	require.Equal(t, ban.AppealApproved, reviewed.Status)
	require.Equal(t, "100", reviewed.ReviewedBy)
	require.NotNil(t, reviewed.ReviewedOn)

	// Approval lifts the owning ban in the same step.
	owning, errOwning := fixture.Bans.ByID(t.Context(), mod, issued.BanID)
	require.NoError(t, errOwning)
	require.False(t, owning.Active)
	require.Equal(t, "appeal approved", owning.UnbanReason)
}

func TestReviewAppealDeny(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	appeal, errSubmit := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "false positive")
	require.NoError(t, errSubmit)

	reviewed, errReview := fixture.Appeals.Review(t.Context(), mod, appeal.AppealID, ban.AppealDenied, "evidence stands")
	require.NoError(t, errReview)
	require.Equal(t, ban.AppealDenied, reviewed.Status)

	owning, errOwning := fixture.Bans.ByID(t.Context(), mod, issued.BanID)
	require.NoError(t, errOwning)
	require.True(t, owning.Active)
}

func TestReviewAppealValidation(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	appeal, errSubmit := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "false positive")
	require.NoError(t, errSubmit)

	_, errPending := fixture.Appeals.Review(t.Context(), mod, appeal.AppealID, ban.AppealPending, "")
	require.ErrorIs(t, errPending, domain.ErrValidation)

	_, errMissing := fixture.Appeals.Review(t.Context(), mod, 99999, ban.AppealDenied, "")
	require.ErrorIs(t, errMissing, domain.ErrNotFound)

	_, errReview := fixture.Appeals.Review(t.Context(), mod, appeal.AppealID, ban.AppealDenied, "evidence stands")
	require.NoError(t, errReview)

	// Decisions are final.
	_, errRepeat := fixture.Appeals.Review(t.Context(), mod, appeal.AppealID, ban.AppealApproved, "")
	require.ErrorIs(t, errRepeat, domain.ErrInvalidState)
}

func TestReviewAppealConcurrent(t *testing.T) {
	t.Parallel()

	var (
		fixture   = tests.NewFixture()
		mod       = tests.Moderator("100", "guild-1")
		waitGroup sync.WaitGroup
		errs      = make(chan error, 10)
	)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	appeal, errSubmit := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "false positive")
	require.NoError(t, errSubmit)

	for range 10 {
		waitGroup.Go(func() {
			_, errReview := fixture.Appeals.Review(t.Context(), mod, appeal.AppealID, ban.AppealDenied, "raced")
			errs <- errReview
		})
	}

	waitGroup.Wait()
	close(errs)

	var won int
	for errReview := range errs {
		if errReview == nil {
			won++

			continue
		}

		require.ErrorIs(t, errReview, domain.ErrInvalidState)
	}

	require.Equal(t, 1, won)
}

func TestAppealChannelNotifications(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	_, errSettings := fixture.Config.Write(t.Context(), config.Settings{
		CommunityID: "guild-1", AppealChannelID: "appeals-1",
	})
	require.NoError(t, errSettings)

	issued, errIssue := fixture.Bans.Issue(t.Context(), mod, ban.Opts{
		CommunityID: "guild-1", PlayerID: 5000, PlayerName: "builderman",
		Kind: ban.Permanent, Reason: "exploiting",
	})
	require.NoError(t, errIssue)

	appeal, errSubmit := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "false positive")
	require.NoError(t, errSubmit)

	sent := fixture.Notifier.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "appeals-1", sent[0].ChannelID)
	require.Equal(t, "Appeal submitted", sent[0].Embed.Title)

	_, errReview := fixture.Appeals.Review(t.Context(), mod, appeal.AppealID, ban.AppealDenied, "evidence stands")
	require.NoError(t, errReview)

	sent = fixture.Notifier.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, "appeals-1", sent[1].ChannelID)
	require.Equal(t, "Appeal denied", sent[1].Embed.Title)
}

func TestAppealScopeHidesRows(t *testing.T) {
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

	appeal, errSubmit := fixture.Appeals.Submit(t.Context(), "5000", issued.BanID, "false positive")
	require.NoError(t, errSubmit)

	_, errOutside := fixture.Appeals.ByID(t.Context(), outsider, appeal.AppealID)
	require.ErrorIs(t, errOutside, domain.ErrNotFound)

	_, errReview := fixture.Appeals.Review(t.Context(), outsider, appeal.AppealID, ban.AppealDenied, "")
	require.ErrorIs(t, errReview, domain.ErrNotFound)

	visible, errQuery := fixture.Appeals.Query(t.Context(), outsider, ban.AppealQueryOpts{BanID: issued.BanID})
	require.NoError(t, errQuery)
	require.Empty(t, visible)
}
