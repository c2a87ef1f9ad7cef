package ticket_test

import (
	"sync"
	"testing"

	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/tests"
	"github.com/RoModerate/romoderate/internal/ticket"
	"github.com/stretchr/testify/require"
)

func TestCreateTicket(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	created, errCreate := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "Exploiter in lobby 3",
		Description: "Teleporting through walls", Priority: ticket.PriorityHigh,
	})
	require.NoError(t, errCreate)
	require.Positive(t, created.TicketID)
	require.Equal(t, ticket.StatusOpen, created.Status)
	require.Equal(t, "100", created.SubmitterID)
	require.Equal(t, "general", created.Category)
	require.Empty(t, created.AssignedTo)
}

func TestCreateTicketValidation(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	_, errTitle := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "   ",
	})
	require.ErrorIs(t, errTitle, domain.ErrValidation)

	_, errPriority := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "Report", Priority: ticket.Priority(9),
	})
	require.ErrorIs(t, errPriority, domain.ErrValidation)

	_, errScope := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-2", Title: "Report",
	})
	require.ErrorIs(t, errScope, domain.ErrScopeDenied)
}

func TestClaimTicket(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		first   = tests.Moderator("100", "guild-1")
		second  = tests.Moderator("200", "guild-1")
	)

	created, errCreate := fixture.Tickets.Create(t.Context(), first, ticket.Opts{
		CommunityID: "guild-1", Title: "Exploiter report",
	})
	require.NoError(t, errCreate)

	claimed, errClaim := fixture.Tickets.Claim(t.Context(), first, created.TicketID)
	require.NoError(t, errClaim)
	require.Equal(t, "100", claimed.AssignedTo)

	_, errRepeat := fixture.Tickets.Claim(t.Context(), second, created.TicketID)
	require.ErrorIs(t, errRepeat, domain.ErrConflict)
}

func TestClaimTicketConcurrent(t *testing.T) {
	t.Parallel()

	var (
		fixture   = tests.NewFixture()
		mod       = tests.Moderator("100", "guild-1")
		waitGroup sync.WaitGroup
		errs      = make(chan error, 10)
	)

	created, errCreate := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "Exploiter report",
	})
	require.NoError(t, errCreate)

	for range 10 {
		waitGroup.Go(func() {
			_, errClaim := fixture.Tickets.Claim(t.Context(), mod, created.TicketID)
			errs <- errClaim
		})
	}

	waitGroup.Wait()
	close(errs)

	var won int
	for errClaim := range errs {
		if errClaim == nil {
			won++

			continue
		}

		require.ErrorIs(t, errClaim, domain.ErrConflict)
	}

	require.Equal(t, 1, won)
}

func TestCloseAndReopenTicket(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	created, errCreate := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "Exploiter report",
	})
	require.NoError(t, errCreate)

	closed, errClose := fixture.Tickets.Close(t.Context(), mod, created.TicketID)
	require.NoError(t, errClose)
	require.Equal(t, ticket.StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedOn)

	// Closing twice is a no-op, not an error.
	again, errAgain := fixture.Tickets.Close(t.Context(), mod, created.TicketID)
	require.NoError(t, errAgain)
	require.Equal(t, ticket.StatusClosed, again.Status)

	reopened, errReopen := fixture.Tickets.Reopen(t.Context(), mod, created.TicketID)
	require.NoError(t, errReopen)
	require.Equal(t, ticket.StatusOpen, reopened.Status)
	require.Nil(t, reopened.ClosedOn)
}

func TestSetTicketPriority(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	created, errCreate := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "Exploiter report",
	})
	require.NoError(t, errCreate)

	raised, errRaise := fixture.Tickets.SetPriority(t.Context(), mod, created.TicketID, ticket.PriorityHigh)
	require.NoError(t, errRaise)
	require.Equal(t, ticket.PriorityHigh, raised.Priority)

	_, errInvalid := fixture.Tickets.SetPriority(t.Context(), mod, created.TicketID, ticket.Priority(-1))
	require.ErrorIs(t, errInvalid, domain.ErrValidation)
}

func TestTicketScopeHidesRows(t *testing.T) {
	t.Parallel()

	var (
		fixture  = tests.NewFixture()
		insider  = tests.Moderator("100", "guild-1")
		outsider = tests.Moderator("200", "guild-2")
	)

	created, errCreate := fixture.Tickets.Create(t.Context(), insider, ticket.Opts{
		CommunityID: "guild-1", Title: "Exploiter report",
	})
	require.NoError(t, errCreate)

	_, errOutside := fixture.Tickets.ByID(t.Context(), outsider, created.TicketID)
	require.ErrorIs(t, errOutside, domain.ErrNotFound)

	_, errClaim := fixture.Tickets.Claim(t.Context(), outsider, created.TicketID)
	require.ErrorIs(t, errClaim, domain.ErrNotFound)

	visible, errQuery := fixture.Tickets.Query(t.Context(), outsider, ticket.QueryOpts{OpenOnly: true})
	require.NoError(t, errQuery)
	require.Empty(t, visible)
}

func TestTicketQueryOrdering(t *testing.T) {
	t.Parallel()

	var (
		fixture = tests.NewFixture()
		mod     = tests.Moderator("100", "guild-1")
	)

	low, errLow := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "Chat spam", Priority: ticket.PriorityLow,
	})
	require.NoError(t, errLow)

	high, errHigh := fixture.Tickets.Create(t.Context(), mod, ticket.Opts{
		CommunityID: "guild-1", Title: "Active exploiter", Priority: ticket.PriorityHigh,
	})
	require.NoError(t, errHigh)

	open, errQuery := fixture.Tickets.Query(t.Context(), mod, ticket.QueryOpts{OpenOnly: true})
	require.NoError(t, errQuery)
	require.Len(t, open, 2)
	require.Equal(t, high.TicketID, open[0].TicketID)
	require.Equal(t, low.TicketID, open[1].TicketID)
}
