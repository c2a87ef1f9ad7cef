// Package tests provides hermetic test doubles for the storage layer. The
// memory repositories enforce the same conditional-write semantics as the
// postgres ones (one active ban per pair, one pending appeal per ban, one
// active shift per moderator, first claim wins) behind a single mutex, so the
// concurrency invariants can be exercised without a database.
package tests

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/relay"
	"github.com/RoModerate/romoderate/internal/shift"
	"github.com/RoModerate/romoderate/internal/ticket"
	"github.com/samber/lo"
)

type MemoryDB struct {
	mu       sync.Mutex
	nextID   int64
	bans     map[int64]ban.Ban
	appeals  map[int64]ban.Appeal
	tickets  map[int64]ticket.Ticket
	shifts   map[int64]shift.Shift
	settings map[string]config.Settings
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		bans:     map[int64]ban.Ban{},
		appeals:  map[int64]ban.Appeal{},
		tickets:  map[int64]ticket.Ticket{},
		shifts:   map[int64]shift.Shift{},
		settings: map[string]config.Settings{},
	}
}

func (db *MemoryDB) id() int64 {
	db.nextID++

	return db.nextID
}

type MemoryBanRepository struct {
	db *MemoryDB
}

func NewMemoryBanRepository(db *MemoryDB) *MemoryBanRepository {
	return &MemoryBanRepository{db: db}
}

func (r *MemoryBanRepository) Issue(_ context.Context, newBan *ban.Ban) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, existing := range r.db.bans {
		if existing.CommunityID == newBan.CommunityID && existing.PlayerID == newBan.PlayerID && existing.Active {
			existing.Active = false
			existing.UnbanReason = "superseded"
			existing.UpdatedOn = newBan.UpdatedOn
			r.db.bans[id] = existing
		}
	}

	newBan.BanID = r.db.id()
	newBan.Active = true
	r.db.bans[newBan.BanID] = *newBan

	return nil
}

func (r *MemoryBanRepository) Deactivate(_ context.Context, banID int64, unbanReason string) (ban.Ban, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.bans[banID]
	if !found || !existing.Active {
		return ban.Ban{}, database.ErrNoResult
	}

	existing.Active = false
	existing.UnbanReason = unbanReason
	existing.UpdatedOn = time.Now()
	r.db.bans[banID] = existing

	return existing, nil
}

func (r *MemoryBanRepository) ByID(_ context.Context, banID int64) (ban.Ban, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.bans[banID]
	if !found {
		return ban.Ban{}, database.ErrNoResult
	}

	return existing, nil
}

func (r *MemoryBanRepository) Query(_ context.Context, opts ban.QueryOpts) ([]ban.Ban, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now()

	var bans []ban.Ban

	for _, existing := range r.db.bans {
		if !lo.Contains(opts.Scope, existing.CommunityID) {
			continue
		}

		if opts.CommunityID != "" && existing.CommunityID != opts.CommunityID {
			continue
		}

		if opts.PlayerID > 0 && existing.PlayerID != opts.PlayerID {
			continue
		}

		if opts.ActiveOnly && !existing.InForce(now) {
			continue
		}

		bans = append(bans, existing)
	}

	sort.Slice(bans, func(i, j int) bool {
		return bans[i].CreatedOn.After(bans[j].CreatedOn)
	})

	return bans, nil
}

func (r *MemoryBanRepository) AppendEvidence(_ context.Context, banID int64, uri string) (ban.Ban, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.bans[banID]
	if !found {
		return ban.Ban{}, database.ErrNoResult
	}

	existing.Evidence = append(existing.Evidence, uri)
	existing.UpdatedOn = time.Now()
	r.db.bans[banID] = existing

	return existing, nil
}

func (r *MemoryBanRepository) SetRelayStatus(_ context.Context, banID int64, status relay.Status) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.bans[banID]
	if !found {
		return database.ErrNoResult
	}

	existing.RelayStatus = status
	r.db.bans[banID] = existing

	return nil
}

func (r *MemoryBanRepository) SweepExpired(_ context.Context, now time.Time) ([]ban.Ban, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var expired []ban.Ban

	for id, existing := range r.db.bans {
		if existing.Active && existing.ValidUntil != nil && !existing.ValidUntil.After(now) {
			existing.Active = false
			existing.UnbanReason = "expired"
			existing.UpdatedOn = now
			r.db.bans[id] = existing
			expired = append(expired, existing)
		}
	}

	return expired, nil
}

type MemoryAppealRepository struct {
	db *MemoryDB
}

func NewMemoryAppealRepository(db *MemoryDB) *MemoryAppealRepository {
	return &MemoryAppealRepository{db: db}
}

func (r *MemoryAppealRepository) Submit(_ context.Context, appeal *ban.Appeal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.appeals {
		if existing.BanID == appeal.BanID && existing.Status == ban.AppealPending {
			return database.ErrDuplicate
		}
	}

	appeal.AppealID = r.db.id()
	r.db.appeals[appeal.AppealID] = *appeal

	return nil
}

func (r *MemoryAppealRepository) ByID(_ context.Context, appealID int64) (ban.Appeal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.appeals[appealID]
	if !found {
		return ban.Appeal{}, database.ErrNoResult
	}

	return existing, nil
}

func (r *MemoryAppealRepository) Query(_ context.Context, opts ban.AppealQueryOpts) ([]ban.Appeal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var appeals []ban.Appeal

	for _, existing := range r.db.appeals {
		if !lo.Contains(opts.Scope, existing.CommunityID) {
			continue
		}

		if opts.CommunityID != "" && existing.CommunityID != opts.CommunityID {
			continue
		}

		if opts.BanID > 0 && existing.BanID != opts.BanID {
			continue
		}

		if opts.PendingOnly && existing.Status != ban.AppealPending {
			continue
		}

		appeals = append(appeals, existing)
	}

	sort.Slice(appeals, func(i, j int) bool {
		return appeals[i].CreatedOn.After(appeals[j].CreatedOn)
	})

	return appeals, nil
}

func (r *MemoryAppealRepository) Review(_ context.Context, appealID int64, decision ban.AppealStatus,
	reviewer string, note string, reviewedOn time.Time,
) (ban.Appeal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.appeals[appealID]
	if !found || existing.Status != ban.AppealPending {
		return ban.Appeal{}, database.ErrNoResult
	}

	existing.Status = decision
	existing.ReviewedBy = reviewer
	existing.ReviewNote = note
	existing.ReviewedOn = &reviewedOn
	r.db.appeals[appealID] = existing

	if decision == ban.AppealApproved {
		if owner, ok := r.db.bans[existing.BanID]; ok && owner.Active {
			owner.Active = false
			owner.UnbanReason = "appeal approved"
			owner.UpdatedOn = reviewedOn
			r.db.bans[existing.BanID] = owner
		}
	}

	return existing, nil
}

type MemoryTicketRepository struct {
	db *MemoryDB
}

func NewMemoryTicketRepository(db *MemoryDB) *MemoryTicketRepository {
	return &MemoryTicketRepository{db: db}
}

func (r *MemoryTicketRepository) Create(_ context.Context, newTicket *ticket.Ticket) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	newTicket.TicketID = r.db.id()
	r.db.tickets[newTicket.TicketID] = *newTicket

	return nil
}

func (r *MemoryTicketRepository) ByID(_ context.Context, ticketID int64) (ticket.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.tickets[ticketID]
	if !found {
		return ticket.Ticket{}, database.ErrNoResult
	}

	return existing, nil
}

func (r *MemoryTicketRepository) Query(_ context.Context, opts ticket.QueryOpts) ([]ticket.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var tickets []ticket.Ticket

	for _, existing := range r.db.tickets {
		if !lo.Contains(opts.Scope, existing.CommunityID) {
			continue
		}

		if opts.CommunityID != "" && existing.CommunityID != opts.CommunityID {
			continue
		}

		if opts.SubmitterID != "" && existing.SubmitterID != opts.SubmitterID {
			continue
		}

		if opts.AssignedTo != "" && existing.AssignedTo != opts.AssignedTo {
			continue
		}

		if opts.OpenOnly && existing.Status != ticket.StatusOpen {
			continue
		}

		tickets = append(tickets, existing)
	}

	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].Priority != tickets[j].Priority {
			return tickets[i].Priority > tickets[j].Priority
		}

		return tickets[i].CreatedOn.After(tickets[j].CreatedOn)
	})

	return tickets, nil
}

// Claim only succeeds for unassigned tickets, mirroring the conditional
// UPDATE in postgres.
func (r *MemoryTicketRepository) Claim(_ context.Context, ticketID int64, moderatorID string) (ticket.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.tickets[ticketID]
	if !found || existing.AssignedTo != "" {
		return ticket.Ticket{}, database.ErrNoResult
	}

	existing.AssignedTo = moderatorID
	existing.UpdatedOn = time.Now()
	r.db.tickets[ticketID] = existing

	return existing, nil
}

func (r *MemoryTicketRepository) SetPriority(_ context.Context, ticketID int64, priority ticket.Priority) (ticket.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.tickets[ticketID]
	if !found {
		return ticket.Ticket{}, database.ErrNoResult
	}

	existing.Priority = priority
	existing.UpdatedOn = time.Now()
	r.db.tickets[ticketID] = existing

	return existing, nil
}

func (r *MemoryTicketRepository) SetStatus(_ context.Context, ticketID int64, status ticket.Status, closedOn *time.Time) (ticket.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.tickets[ticketID]
	if !found {
		return ticket.Ticket{}, database.ErrNoResult
	}

	existing.Status = status
	existing.ClosedOn = closedOn
	existing.UpdatedOn = time.Now()
	r.db.tickets[ticketID] = existing

	return existing, nil
}

type MemoryShiftRepository struct {
	db *MemoryDB
}

func NewMemoryShiftRepository(db *MemoryDB) *MemoryShiftRepository {
	return &MemoryShiftRepository{db: db}
}

func (r *MemoryShiftRepository) Start(_ context.Context, newShift *shift.Shift) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.shifts {
		if existing.CommunityID == newShift.CommunityID && existing.ModeratorID == newShift.ModeratorID &&
			existing.Status == shift.StatusActive {
			return database.ErrDuplicate
		}
	}

	newShift.ShiftID = r.db.id()
	r.db.shifts[newShift.ShiftID] = *newShift

	return nil
}

func (r *MemoryShiftRepository) End(_ context.Context, communityID string, moderatorID string, endedOn time.Time) (shift.Shift, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, existing := range r.db.shifts {
		if existing.CommunityID == communityID && existing.ModeratorID == moderatorID &&
			existing.Status == shift.StatusActive {
			existing.Status = shift.StatusCompleted
			existing.EndedOn = &endedOn
			r.db.shifts[id] = existing

			return existing, nil
		}
	}

	return shift.Shift{}, database.ErrNoResult
}

func (r *MemoryShiftRepository) RecordAction(_ context.Context, communityID string, moderatorID string, kind shift.ActionKind) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, existing := range r.db.shifts {
		if existing.CommunityID != communityID || existing.ModeratorID != moderatorID ||
			existing.Status != shift.StatusActive {
			continue
		}

		existing.Metrics.ActionsCount++

		switch kind {
		case shift.ActionBanIssued:
			existing.Metrics.BansIssued++
		case shift.ActionAppealReviewed:
			existing.Metrics.AppealsReviewed++
		case shift.ActionTicketHandled:
			existing.Metrics.TicketsHandled++
		case shift.ActionReportProcessed:
			existing.Metrics.ReportsProcessed++
		}

		r.db.shifts[id] = existing

		return nil
	}

	return database.ErrNoResult
}

func (r *MemoryShiftRepository) ByID(_ context.Context, shiftID int64) (shift.Shift, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.shifts[shiftID]
	if !found {
		return shift.Shift{}, database.ErrNoResult
	}

	return existing, nil
}

func (r *MemoryShiftRepository) Query(_ context.Context, opts shift.QueryOpts) ([]shift.Shift, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var shifts []shift.Shift

	for _, existing := range r.db.shifts {
		if !lo.Contains(opts.Scope, existing.CommunityID) {
			continue
		}

		if opts.CommunityID != "" && existing.CommunityID != opts.CommunityID {
			continue
		}

		if opts.ModeratorID != "" && existing.ModeratorID != opts.ModeratorID {
			continue
		}

		if opts.ActiveOnly && existing.Status != shift.StatusActive {
			continue
		}

		shifts = append(shifts, existing)
	}

	sort.Slice(shifts, func(i, j int) bool {
		return shifts[i].StartedOn.After(shifts[j].StartedOn)
	})

	return shifts, nil
}

type MemorySettingsRepository struct {
	db *MemoryDB
}

func NewMemorySettingsRepository(db *MemoryDB) *MemorySettingsRepository {
	return &MemorySettingsRepository{db: db}
}

func (r *MemorySettingsRepository) Get(_ context.Context, communityID string) (config.Settings, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, found := r.db.settings[communityID]
	if !found {
		return config.Settings{}, database.ErrNoResult
	}

	return existing, nil
}

func (r *MemorySettingsRepository) Save(_ context.Context, settings *config.Settings) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	settings.UpdatedOn = time.Now()
	if _, found := r.db.settings[settings.CommunityID]; !found {
		settings.CreatedOn = settings.UpdatedOn
	}

	r.db.settings[settings.CommunityID] = *settings

	return nil
}

func (r *MemorySettingsRepository) All(_ context.Context) ([]config.Settings, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var all []config.Settings
	for _, existing := range r.db.settings {
		all = append(all, existing)
	}

	return all, nil
}
