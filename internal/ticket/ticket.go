// Package ticket implements the support ticket lifecycle. Tickets carry no
// strict state invariant the way bans do: close and reopen are idempotent,
// while claiming is first-writer-wins and enforced at the storage boundary.
package ticket

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/notification"
	"github.com/RoModerate/romoderate/internal/shift"
	"github.com/RoModerate/romoderate/pkg/fp"
)

var (
	ErrInvalidTicketOpts  = errors.New("invalid ticket options")
	ErrTicketDoesNotExist = errors.New("ticket does not exist")
	ErrAlreadyClaimed     = errors.New("ticket is already claimed")
	ErrInvalidPriority    = errors.New("invalid ticket priority")
)

type Status int

const (
	StatusOpen Status = iota
	StatusClosed
)

func (s Status) String() string {
	if s == StatusClosed {
		return "closed"
	}

	return "open"
}

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "medium"
	}
}

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// Categories are free-form, but report-category tickets count towards the
// reports_processed shift metric when closed.
const (
	CategoryGeneral = "general"
	CategoryReport  = "report"
)

type Ticket struct {
	TicketID    int64      `json:"ticket_id"`
	CommunityID string     `json:"community_id"`
	SubmitterID string     `json:"submitter_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	AssignedTo  string     `json:"assigned_to"`
	CreatedOn   time.Time  `json:"created_on"`
	UpdatedOn   time.Time  `json:"updated_on"`
	ClosedOn    *time.Time `json:"closed_on"`
}

// Opts is the create-ticket intent.
type Opts struct {
	CommunityID string   `json:"community_id" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
}

func (opts Opts) Validate() error {
	if opts.CommunityID == "" || strings.TrimSpace(opts.Title) == "" {
		return errors.Join(ErrInvalidTicketOpts, domain.ErrValidation)
	}

	if !opts.Priority.Valid() {
		return errors.Join(ErrInvalidPriority, domain.ErrValidation)
	}

	return nil
}

type QueryOpts struct {
	domain.QueryFilter
	CommunityID string `json:"community_id" schema:"community_id"`
	SubmitterID string `json:"submitter_id" schema:"submitter_id"`
	AssignedTo  string `json:"assigned_to" schema:"assigned_to"`
	OpenOnly    bool   `json:"open_only" schema:"open_only"`
	Scope       []string
}

// Repository persists tickets. Claim only matches unassigned rows, so the
// first of two concurrent claimers wins and the loser sees no result.
type Repository interface {
	Create(ctx context.Context, ticket *Ticket) error
	ByID(ctx context.Context, ticketID int64) (Ticket, error)
	Query(ctx context.Context, opts QueryOpts) ([]Ticket, error)
	Claim(ctx context.Context, ticketID int64, moderatorID string) (Ticket, error)
	SetPriority(ctx context.Context, ticketID int64, priority Priority) (Ticket, error)
	SetStatus(ctx context.Context, ticketID int64, status Status, closedOn *time.Time) (Ticket, error)
}

type Tickets struct {
	repo     Repository
	shifts   shift.Shifts
	notifier notification.Notifier
	conf     *config.Configuration
	events   *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]
}

func NewTickets(repo Repository, shifts shift.Shifts, notifier notification.Notifier,
	conf *config.Configuration, events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent],
) Tickets {
	return Tickets{repo: repo, shifts: shifts, notifier: notifier, conf: conf, events: events}
}

func (s Tickets) Create(ctx context.Context, profile auth.Profile, opts Opts) (Ticket, error) {
	if errScope := auth.CheckScope(profile, opts.CommunityID); errScope != nil {
		return Ticket{}, errScope
	}

	if errValidate := opts.Validate(); errValidate != nil {
		return Ticket{}, errValidate
	}

	category := opts.Category
	if category == "" {
		category = CategoryGeneral
	}

	now := time.Now()
	ticket := Ticket{
		CommunityID: opts.CommunityID,
		SubmitterID: profile.ModeratorID,
		Title:       opts.Title,
		Description: opts.Description,
		Category:    category,
		Priority:    opts.Priority,
		Status:      StatusOpen,
		CreatedOn:   now,
		UpdatedOn:   now,
	}

	if errCreate := s.repo.Create(ctx, &ticket); errCreate != nil {
		return Ticket{}, errCreate
	}

	s.emit(ticket, domain.ChangeCreated)
	s.announce(ctx, ticket)

	slog.Info("Ticket created", slog.Int64("ticket_id", ticket.TicketID),
		slog.String("community_id", ticket.CommunityID), slog.String("priority", ticket.Priority.String()))

	return ticket, nil
}

// Claim assigns the ticket to the calling moderator. An already-claimed
// ticket is domain.ErrConflict; there is no override.
func (s Tickets) Claim(ctx context.Context, profile auth.Profile, ticketID int64) (Ticket, error) {
	existing, errExisting := s.ByID(ctx, profile, ticketID)
	if errExisting != nil {
		return Ticket{}, errExisting
	}

	if existing.AssignedTo != "" {
		return Ticket{}, errors.Join(ErrAlreadyClaimed, domain.ErrConflict)
	}

	claimed, errClaim := s.repo.Claim(ctx, ticketID, profile.ModeratorID)
	if errClaim != nil {
		if errors.Is(errClaim, database.ErrNoResult) {
			// Lost the race to another claimer.
			return Ticket{}, errors.Join(ErrAlreadyClaimed, domain.ErrConflict)
		}

		return Ticket{}, errClaim
	}

	s.emit(claimed, domain.ChangeUpdated)

	return claimed, nil
}

func (s Tickets) SetPriority(ctx context.Context, profile auth.Profile, ticketID int64, priority Priority) (Ticket, error) {
	if !priority.Valid() {
		return Ticket{}, errors.Join(ErrInvalidPriority, domain.ErrValidation)
	}

	existing, errExisting := s.ByID(ctx, profile, ticketID)
	if errExisting != nil {
		return Ticket{}, errExisting
	}

	updated, errUpdate := s.repo.SetPriority(ctx, existing.TicketID, priority)
	if errUpdate != nil {
		return Ticket{}, errUpdate
	}

	s.emit(updated, domain.ChangeUpdated)

	return updated, nil
}

// Close is an idempotent no-op success when the ticket is already closed.
func (s Tickets) Close(ctx context.Context, profile auth.Profile, ticketID int64) (Ticket, error) {
	existing, errExisting := s.ByID(ctx, profile, ticketID)
	if errExisting != nil {
		return Ticket{}, errExisting
	}

	if existing.Status == StatusClosed {
		return existing, nil
	}

	closedOn := time.Now()

	closed, errClose := s.repo.SetStatus(ctx, ticketID, StatusClosed, &closedOn)
	if errClose != nil {
		return Ticket{}, errClose
	}

	action := shift.ActionTicketHandled
	if closed.Category == CategoryReport {
		action = shift.ActionReportProcessed
	}

	s.shifts.RecordAction(ctx, closed.CommunityID, profile.ModeratorID, action)
	s.emit(closed, domain.ChangeUpdated)

	slog.Info("Ticket closed", slog.Int64("ticket_id", closed.TicketID),
		slog.String("moderator_id", profile.ModeratorID))

	return closed, nil
}

// Reopen mirrors Close and clears the closed timestamp. Reopening an open
// ticket is likewise a no-op success.
func (s Tickets) Reopen(ctx context.Context, profile auth.Profile, ticketID int64) (Ticket, error) {
	existing, errExisting := s.ByID(ctx, profile, ticketID)
	if errExisting != nil {
		return Ticket{}, errExisting
	}

	if existing.Status == StatusOpen {
		return existing, nil
	}

	reopened, errReopen := s.repo.SetStatus(ctx, ticketID, StatusOpen, nil)
	if errReopen != nil {
		return Ticket{}, errReopen
	}

	s.emit(reopened, domain.ChangeUpdated)

	return reopened, nil
}

func (s Tickets) ByID(ctx context.Context, profile auth.Profile, ticketID int64) (Ticket, error) {
	ticket, errTicket := s.repo.ByID(ctx, ticketID)
	if errTicket != nil {
		if errors.Is(errTicket, database.ErrNoResult) {
			return Ticket{}, errors.Join(ErrTicketDoesNotExist, domain.ErrNotFound)
		}

		return Ticket{}, errTicket
	}

	if errScope := auth.CheckScope(profile, ticket.CommunityID); errScope != nil {
		// Out of scope rows look exactly like missing ones.
		return Ticket{}, errors.Join(ErrTicketDoesNotExist, domain.ErrNotFound)
	}

	return ticket, nil
}

func (s Tickets) Query(ctx context.Context, profile auth.Profile, opts QueryOpts) ([]Ticket, error) {
	if opts.CommunityID != "" {
		if errScope := auth.CheckScope(profile, opts.CommunityID); errScope != nil {
			return nil, errScope
		}
	}

	opts.Scope = profile.Scope()

	return s.repo.Query(ctx, opts)
}

func (s Tickets) announce(ctx context.Context, ticket Ticket) {
	settings, errSettings := s.conf.Community(ctx, ticket.CommunityID)
	if errSettings != nil || settings.TicketChannelID == "" {
		return
	}

	s.notifier.Send(notification.NewDiscord(settings.TicketChannelID, CreatedMessage(ticket)))
}

func (s Tickets) emit(ticket Ticket, kind domain.ChangeKind) {
	go s.events.Emit(domain.EntityTicket, domain.ChangeEvent{
		CommunityID: ticket.CommunityID,
		EntityType:  domain.EntityTicket,
		EntityID:    ticket.TicketID,
		ChangeKind:  kind,
	})
}
