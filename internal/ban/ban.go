// Package ban implements the ban and appeal case lifecycle. Transition
// legality is enforced here; the uniqueness invariants (one active ban per
// community/player pair) are enforced one layer down at the storage boundary
// so concurrent issuers serialize.
package ban

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/relay"
	"github.com/RoModerate/romoderate/internal/shift"
	"github.com/RoModerate/romoderate/pkg/fp"
)

var (
	ErrInvalidBanOpts     = errors.New("invalid ban options")
	ErrReasonEmpty        = errors.New("ban reason cannot be empty")
	ErrInvalidBanDuration = errors.New("temporary bans require a duration")
	ErrSaveBan            = errors.New("failed to save ban")
	ErrGetBan             = errors.New("failed to load existing ban")
	ErrBanDoesNotExist    = errors.New("ban does not exist")
	ErrAlreadyInactive    = errors.New("ban is already inactive")
)

// Kind is the severity class of a ban.
type Kind int

const (
	Permanent Kind = iota
	Temporary
	Warning
)

func (k Kind) String() string {
	switch k {
	case Temporary:
		return "temporary"
	case Warning:
		return "warning"
	default:
		return "permanent"
	}
}

type Ban struct {
	BanID       int64        `json:"ban_id"`
	CommunityID string       `json:"community_id"`
	PlayerID    int64        `json:"player_id"`
	PlayerName  string       `json:"player_name"`
	Kind        Kind         `json:"kind"`
	Reason      string       `json:"reason"`
	Note        string       `json:"note"`
	UnbanReason string       `json:"unban_reason"`
	Evidence    []string     `json:"evidence"`
	IssuedBy    string       `json:"issued_by"`
	Active      bool         `json:"active"`
	RelayStatus relay.Status `json:"relay_status"`
	ValidUntil  *time.Time   `json:"valid_until"`
	CreatedOn   time.Time    `json:"created_on"`
	UpdatedOn   time.Time    `json:"updated_on"`
}

// InForce reports whether the ban currently applies. A temporary ban past its
// expiry is treated as inactive even before the sweeper has flipped the
// stored flag.
func (b Ban) InForce(now time.Time) bool {
	if !b.Active {
		return false
	}

	if b.ValidUntil != nil && !b.ValidUntil.After(now) {
		return false
	}

	return true
}

// Remaining returns the time left on a temporary ban, nil for permanent ones.
func (b Ban) Remaining(now time.Time) *time.Duration {
	if b.ValidUntil == nil {
		return nil
	}

	left := b.ValidUntil.Sub(now)
	if left < 0 {
		left = 0
	}

	return &left
}

// Opts is the issue-ban intent.
type Opts struct {
	CommunityID     string   `json:"community_id" binding:"required"`
	PlayerID        int64    `json:"player_id" binding:"required"`
	PlayerName      string   `json:"player_name"`
	Kind            Kind     `json:"kind"`
	Reason          string   `json:"reason"`
	Note            string   `json:"note"`
	DurationSeconds int64    `json:"duration_seconds"`
	Evidence        []string `json:"evidence"`
}

func (opts Opts) Validate() error {
	if strings.TrimSpace(opts.Reason) == "" {
		return errors.Join(ErrReasonEmpty, domain.ErrValidation)
	}

	if opts.Kind == Temporary && opts.DurationSeconds <= 0 {
		return errors.Join(ErrInvalidBanDuration, domain.ErrValidation)
	}

	if opts.CommunityID == "" || opts.PlayerID <= 0 {
		return errors.Join(ErrInvalidBanOpts, domain.ErrValidation)
	}

	return nil
}

type QueryOpts struct {
	domain.QueryFilter
	CommunityID string `json:"community_id" schema:"community_id"`
	PlayerID    int64  `json:"player_id" schema:"player_id"`
	ActiveOnly  bool   `json:"active_only" schema:"active_only"`
	Scope       []string
}

// Repository is the ban persistence contract. Issue replaces any prior active
// ban for the pair and inserts the new one as a single atomic unit.
type Repository interface {
	Issue(ctx context.Context, ban *Ban) error
	Deactivate(ctx context.Context, banID int64, unbanReason string) (Ban, error)
	ByID(ctx context.Context, banID int64) (Ban, error)
	Query(ctx context.Context, opts QueryOpts) ([]Ban, error)
	AppendEvidence(ctx context.Context, banID int64, uri string) (Ban, error)
	SetRelayStatus(ctx context.Context, banID int64, status relay.Status) error
	SweepExpired(ctx context.Context, now time.Time) ([]Ban, error)
}

type Bans struct {
	repo   Repository
	shifts shift.Shifts
	relay  *relay.Gateway
	events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]
}

func NewBans(repo Repository, shifts shift.Shifts, gateway *relay.Gateway,
	events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent],
) Bans {
	return Bans{repo: repo, shifts: shifts, relay: gateway, events: events}
}

// Issue commits a new active ban for the player, superseding any prior active
// ban for the same (community, player) pair, then records the shift action and
// hands the enforcement payload to the relay. Relay failures never surface
// here; the committed row is the authoritative record.
func (s Bans) Issue(ctx context.Context, profile auth.Profile, opts Opts) (Ban, error) {
	if errScope := auth.CheckScope(profile, opts.CommunityID); errScope != nil {
		return Ban{}, errScope
	}

	if errValidate := opts.Validate(); errValidate != nil {
		return Ban{}, errValidate
	}

	now := time.Now()

	newBan := Ban{
		CommunityID: opts.CommunityID,
		PlayerID:    opts.PlayerID,
		PlayerName:  opts.PlayerName,
		Kind:        opts.Kind,
		Reason:      opts.Reason,
		Note:        opts.Note,
		Evidence:    opts.Evidence,
		IssuedBy:    profile.ModeratorID,
		Active:      true,
		RelayStatus: relay.StatusPending,
		CreatedOn:   now,
		UpdatedOn:   now,
	}

	if opts.Kind == Temporary {
		until := now.Add(time.Duration(opts.DurationSeconds) * time.Second)
		newBan.ValidUntil = &until
	}

	if errIssue := s.repo.Issue(ctx, &newBan); errIssue != nil {
		return Ban{}, errors.Join(errIssue, ErrSaveBan)
	}

	s.shifts.RecordAction(ctx, newBan.CommunityID, profile.ModeratorID, shift.ActionBanIssued)
	s.emit(newBan, domain.ChangeCreated)

	s.relay.Enqueue(ctx, relay.Payload{
		BanID:       newBan.BanID,
		CommunityID: newBan.CommunityID,
		PlayerID:    newBan.PlayerID,
		PlayerName:  newBan.PlayerName,
		Action:      relay.ActionBan,
		Reason:      newBan.Reason,
		Duration:    newBan.Remaining(now),
		Embed:       BanMessage(newBan),
	})

	slog.Info("Ban issued", slog.Int64("ban_id", newBan.BanID),
		slog.String("community_id", newBan.CommunityID), slog.Int64("player_id", newBan.PlayerID),
		slog.String("kind", newBan.Kind.String()))

	return newBan, nil
}

// Unban deactivates an active ban. A missing ban is domain.ErrNotFound; a ban
// that is already inactive is domain.ErrInvalidState so stale clients can tell
// the difference and refresh.
func (s Bans) Unban(ctx context.Context, profile auth.Profile, banID int64, reason string) (Ban, error) {
	existing, errExisting := s.ByID(ctx, profile, banID)
	if errExisting != nil {
		return Ban{}, errExisting
	}

	if !existing.Active {
		return Ban{}, errors.Join(ErrAlreadyInactive, domain.ErrInvalidState)
	}

	updated, errDeactivate := s.repo.Deactivate(ctx, banID, reason)
	if errDeactivate != nil {
		if errors.Is(errDeactivate, database.ErrNoResult) {
			// Raced with another unban or an appeal approval.
			return Ban{}, errors.Join(ErrAlreadyInactive, domain.ErrInvalidState)
		}

		return Ban{}, errDeactivate
	}

	s.shifts.RecordAction(ctx, updated.CommunityID, profile.ModeratorID, shift.ActionBanLifted)
	s.emit(updated, domain.ChangeUpdated)

	s.relay.Enqueue(ctx, relay.Payload{
		BanID:       updated.BanID,
		CommunityID: updated.CommunityID,
		PlayerID:    updated.PlayerID,
		PlayerName:  updated.PlayerName,
		Action:      relay.ActionUnban,
		Reason:      reason,
		Embed:       UnbanMessage(updated, profile.ModeratorID),
	})

	slog.Info("Ban lifted", slog.Int64("ban_id", banID), slog.String("moderator_id", profile.ModeratorID))

	return updated, nil
}

func (s Bans) ByID(ctx context.Context, profile auth.Profile, banID int64) (Ban, error) {
	ban, errBan := s.repo.ByID(ctx, banID)
	if errBan != nil {
		if errors.Is(errBan, database.ErrNoResult) {
			return Ban{}, errors.Join(ErrBanDoesNotExist, domain.ErrNotFound)
		}

		return Ban{}, errors.Join(errBan, ErrGetBan)
	}

	if errScope := auth.CheckScope(profile, ban.CommunityID); errScope != nil {
		// Out of scope rows look exactly like missing ones.
		return Ban{}, errors.Join(ErrBanDoesNotExist, domain.ErrNotFound)
	}

	return ban, nil
}

func (s Bans) Query(ctx context.Context, profile auth.Profile, opts QueryOpts) ([]Ban, error) {
	if opts.CommunityID != "" {
		if errScope := auth.CheckScope(profile, opts.CommunityID); errScope != nil {
			return nil, errScope
		}
	}

	opts.Scope = profile.Scope()

	return s.repo.Query(ctx, opts)
}

// AddEvidence appends an opaque evidence URI to the ban. Order of submission
// is preserved.
func (s Bans) AddEvidence(ctx context.Context, profile auth.Profile, banID int64, uri string) (Ban, error) {
	if strings.TrimSpace(uri) == "" {
		return Ban{}, domain.ErrValidation
	}

	existing, errExisting := s.ByID(ctx, profile, banID)
	if errExisting != nil {
		return Ban{}, errExisting
	}

	updated, errAppend := s.repo.AppendEvidence(ctx, existing.BanID, uri)
	if errAppend != nil {
		return Ban{}, errAppend
	}

	s.emit(updated, domain.ChangeUpdated)

	return updated, nil
}

func (s Bans) emit(ban Ban, kind domain.ChangeKind) {
	go s.events.Emit(domain.EntityBan, domain.ChangeEvent{
		CommunityID: ban.CommunityID,
		EntityType:  domain.EntityBan,
		EntityID:    ban.BanID,
		ChangeKind:  kind,
	})
}
