// Package shift tracks moderator duty shifts. A shift accumulates per-action
// counters while active and freezes them permanently once ended. Counter
// updates are best-effort telemetry: a failed increment never fails the
// moderation action that triggered it.
package shift

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/pkg/fp"
	"github.com/RoModerate/romoderate/pkg/log"
)

var (
	ErrAlreadyOnShift = errors.New("an active shift already exists for this moderator")
	ErrNoActiveShift  = errors.New("no active shift for this moderator")
	ErrStartShift     = errors.New("failed to start shift")
	ErrEndShift       = errors.New("failed to end shift")
)

type Status int

const (
	StatusActive Status = iota
	StatusCompleted
)

func (s Status) String() string {
	if s == StatusCompleted {
		return "completed"
	}

	return "active"
}

// ActionKind selects which counter RecordAction bumps. Every kind bumps the
// overall actions count; kinds without a dedicated column bump only that.
type ActionKind int

const (
	ActionBanIssued ActionKind = iota
	ActionBanLifted
	ActionAppealReviewed
	ActionTicketHandled
	ActionReportProcessed
)

func (k ActionKind) Column() string {
	switch k {
	case ActionBanIssued:
		return "bans_issued"
	case ActionAppealReviewed:
		return "appeals_reviewed"
	case ActionTicketHandled:
		return "tickets_handled"
	case ActionReportProcessed:
		return "reports_processed"
	default:
		return ""
	}
}

type Metrics struct {
	ActionsCount     int `json:"actions_count"`
	BansIssued       int `json:"bans_issued"`
	AppealsReviewed  int `json:"appeals_reviewed"`
	TicketsHandled   int `json:"tickets_handled"`
	ReportsProcessed int `json:"reports_processed"`
}

type Shift struct {
	ShiftID     int64      `json:"shift_id"`
	CommunityID string     `json:"community_id"`
	ModeratorID string     `json:"moderator_id"`
	Status      Status     `json:"status"`
	StartedOn   time.Time  `json:"started_on"`
	EndedOn     *time.Time `json:"ended_on"`
	Metrics     Metrics    `json:"metrics"`
}

type QueryOpts struct {
	domain.QueryFilter
	CommunityID string `json:"community_id" schema:"community_id"`
	ModeratorID string `json:"moderator_id" schema:"moderator_id"`
	ActiveOnly  bool   `json:"active_only" schema:"active_only"`
	Scope       []string
}

// Repository persistence contract. Start and End are conditional writes: the
// uniqueness of an active (community, moderator) shift is enforced here, not
// in the usecase.
type Repository interface {
	Start(ctx context.Context, shift *Shift) error
	End(ctx context.Context, communityID string, moderatorID string, endedOn time.Time) (Shift, error)
	RecordAction(ctx context.Context, communityID string, moderatorID string, kind ActionKind) error
	ByID(ctx context.Context, shiftID int64) (Shift, error)
	Query(ctx context.Context, opts QueryOpts) ([]Shift, error)
}

type Shifts struct {
	repo   Repository
	events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]
}

func NewShifts(repo Repository, events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]) Shifts {
	return Shifts{repo: repo, events: events}
}

// Start opens a shift for the acting moderator. Fails with domain.ErrConflict
// when one is already active.
func (s Shifts) Start(ctx context.Context, profile auth.Profile, communityID string) (Shift, error) {
	if errScope := auth.CheckScope(profile, communityID); errScope != nil {
		return Shift{}, errScope
	}

	shift := Shift{
		CommunityID: communityID,
		ModeratorID: profile.ModeratorID,
		Status:      StatusActive,
		StartedOn:   time.Now(),
	}

	if errStart := s.repo.Start(ctx, &shift); errStart != nil {
		if errors.Is(errStart, database.ErrDuplicate) {
			return Shift{}, errors.Join(ErrAlreadyOnShift, domain.ErrConflict)
		}

		return Shift{}, errors.Join(errStart, ErrStartShift)
	}

	s.emit(shift, domain.ChangeCreated)

	slog.Info("Shift started", slog.Int64("shift_id", shift.ShiftID),
		slog.String("moderator_id", profile.ModeratorID), slog.String("community_id", communityID))

	return shift, nil
}

// End closes the moderator's active shift and freezes its metrics. Fails with
// domain.ErrNotFound when no shift is active.
func (s Shifts) End(ctx context.Context, profile auth.Profile, communityID string) (Shift, error) {
	if errScope := auth.CheckScope(profile, communityID); errScope != nil {
		return Shift{}, errScope
	}

	ended, errEnd := s.repo.End(ctx, communityID, profile.ModeratorID, time.Now())
	if errEnd != nil {
		if errors.Is(errEnd, database.ErrNoResult) {
			return Shift{}, errors.Join(ErrNoActiveShift, domain.ErrNotFound)
		}

		return Shift{}, errors.Join(errEnd, ErrEndShift)
	}

	s.emit(ended, domain.ChangeUpdated)

	slog.Info("Shift ended", slog.Int64("shift_id", ended.ShiftID),
		slog.String("moderator_id", profile.ModeratorID),
		slog.Int("actions_count", ended.Metrics.ActionsCount))

	return ended, nil
}

// RecordAction increments the active-shift counter for the acting moderator.
// It never fails the parent operation: with no active shift it is a no-op, and
// storage errors are logged and swallowed.
func (s Shifts) RecordAction(ctx context.Context, communityID string, moderatorID string, kind ActionKind) {
	if errRecord := s.repo.RecordAction(ctx, communityID, moderatorID, kind); errRecord != nil {
		if errors.Is(errRecord, database.ErrNoResult) {
			return
		}

		slog.Warn("Failed to record shift action", log.ErrAttr(errRecord),
			slog.String("moderator_id", moderatorID), slog.String("community_id", communityID))
	}
}

func (s Shifts) ByID(ctx context.Context, profile auth.Profile, shiftID int64) (Shift, error) {
	shift, errShift := s.repo.ByID(ctx, shiftID)
	if errShift != nil {
		if errors.Is(errShift, database.ErrNoResult) {
			return Shift{}, domain.ErrNotFound
		}

		return Shift{}, errShift
	}

	if errScope := auth.CheckScope(profile, shift.CommunityID); errScope != nil {
		// Out of scope entities are indistinguishable from missing ones.
		return Shift{}, domain.ErrNotFound
	}

	return shift, nil
}

func (s Shifts) Query(ctx context.Context, profile auth.Profile, opts QueryOpts) ([]Shift, error) {
	if opts.CommunityID != "" {
		if errScope := auth.CheckScope(profile, opts.CommunityID); errScope != nil {
			return nil, errScope
		}
	}

	opts.Scope = profile.Scope()

	return s.repo.Query(ctx, opts)
}

func (s Shifts) emit(shift Shift, kind domain.ChangeKind) {
	go s.events.Emit(domain.EntityShift, domain.ChangeEvent{
		CommunityID: shift.CommunityID,
		EntityType:  domain.EntityShift,
		EntityID:    shift.ShiftID,
		ChangeKind:  kind,
	})
}
