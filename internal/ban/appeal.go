package ban

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
	"github.com/RoModerate/romoderate/internal/relay"
	"github.com/RoModerate/romoderate/internal/shift"
	"github.com/RoModerate/romoderate/pkg/fp"
	"github.com/bwmarrin/discordgo"
)

var (
	ErrAppealBodyEmpty     = errors.New("appeal text cannot be empty")
	ErrAppealBanInactive   = errors.New("cannot appeal an inactive ban")
	ErrAppealPendingExists = errors.New("a pending appeal already exists for this ban")
	ErrAppealNotPending    = errors.New("appeal has already been reviewed")
	ErrAppealDoesNotExist  = errors.New("appeal does not exist")
	ErrInvalidDecision     = errors.New("decision must be approved or denied")
)

type AppealStatus int

const (
	AppealPending AppealStatus = iota
	AppealApproved
	AppealDenied
)

func (s AppealStatus) String() string {
	switch s {
	case AppealApproved:
		return "approved"
	case AppealDenied:
		return "denied"
	default:
		return "pending"
	}
}

// Appeal is owned by its ban: deleting the ban cascades, and an appeal can
// never reference more than one ban.
type Appeal struct {
	AppealID    int64        `json:"appeal_id"`
	BanID       int64        `json:"ban_id"`
	CommunityID string       `json:"community_id"`
	SubmitterID string       `json:"submitter_id"`
	Body        string       `json:"body"`
	Status      AppealStatus `json:"status"`
	ReviewedBy  string       `json:"reviewed_by"`
	ReviewNote  string       `json:"review_note"`
	CreatedOn   time.Time    `json:"created_on"`
	ReviewedOn  *time.Time   `json:"reviewed_on"`
}

type AppealQueryOpts struct {
	domain.QueryFilter
	CommunityID string `json:"community_id" schema:"community_id"`
	BanID       int64  `json:"ban_id" schema:"ban_id"`
	PendingOnly bool   `json:"pending_only" schema:"pending_only"`
	Scope       []string
}

// AppealRepository persists appeals. Review applies the decision and, for an
// approval, deactivates the owning ban in the same transaction; it only
// matches appeals still pending, so a second concurrent review loses cleanly.
type AppealRepository interface {
	Submit(ctx context.Context, appeal *Appeal) error
	ByID(ctx context.Context, appealID int64) (Appeal, error)
	Query(ctx context.Context, opts AppealQueryOpts) ([]Appeal, error)
	Review(ctx context.Context, appealID int64, decision AppealStatus, reviewer string, note string, reviewedOn time.Time) (Appeal, error)
}

type Appeals struct {
	repo     AppealRepository
	bans     Bans
	shifts   shift.Shifts
	relay    *relay.Gateway
	conf     *config.Configuration
	notifier notification.Notifier
	events   *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]
}

func NewAppeals(repo AppealRepository, bans Bans, shifts shift.Shifts, gateway *relay.Gateway,
	conf *config.Configuration, notifier notification.Notifier,
	events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent],
) Appeals {
	return Appeals{
		repo: repo, bans: bans, shifts: shifts, relay: gateway,
		conf: conf, notifier: notifier, events: events,
	}
}

// Submit opens an appeal against an in-force ban. The submitter does not need
// staff scope over the community; banned players appeal their own bans.
func (u Appeals) Submit(ctx context.Context, submitterID string, banID int64, body string) (Appeal, error) {
	if strings.TrimSpace(body) == "" {
		return Appeal{}, errors.Join(ErrAppealBodyEmpty, domain.ErrValidation)
	}

	existing, errBan := u.bans.repo.ByID(ctx, banID)
	if errBan != nil {
		if errors.Is(errBan, database.ErrNoResult) {
			return Appeal{}, errors.Join(ErrBanDoesNotExist, domain.ErrNotFound)
		}

		return Appeal{}, errors.Join(errBan, ErrGetBan)
	}

	if !existing.InForce(time.Now()) {
		return Appeal{}, errors.Join(ErrAppealBanInactive, domain.ErrInvalidState)
	}

	appeal := Appeal{
		BanID:       existing.BanID,
		CommunityID: existing.CommunityID,
		SubmitterID: submitterID,
		Body:        body,
		Status:      AppealPending,
		CreatedOn:   time.Now(),
	}

	if errSubmit := u.repo.Submit(ctx, &appeal); errSubmit != nil {
		if errors.Is(errSubmit, database.ErrDuplicate) {
			return Appeal{}, errors.Join(ErrAppealPendingExists, domain.ErrConflict)
		}

		return Appeal{}, errSubmit
	}

	u.emit(appeal, domain.ChangeCreated)
	u.announce(ctx, appeal.CommunityID, AppealSubmittedMessage(appeal, existing))

	slog.Info("Appeal submitted", slog.Int64("appeal_id", appeal.AppealID),
		slog.Int64("ban_id", banID), slog.String("submitter_id", submitterID))

	return appeal, nil
}

// Review decides a pending appeal, exactly once. Approval deactivates the
// owning ban atomically with the status change and relays the unban; denial
// leaves the ban untouched.
func (u Appeals) Review(ctx context.Context, profile auth.Profile, appealID int64, decision AppealStatus, note string) (Appeal, error) {
	if decision != AppealApproved && decision != AppealDenied {
		return Appeal{}, errors.Join(ErrInvalidDecision, domain.ErrValidation)
	}

	existing, errExisting := u.ByID(ctx, profile, appealID)
	if errExisting != nil {
		return Appeal{}, errExisting
	}

	if existing.Status != AppealPending {
		return Appeal{}, errors.Join(ErrAppealNotPending, domain.ErrInvalidState)
	}

	reviewed, errReview := u.repo.Review(ctx, appealID, decision, profile.ModeratorID, note, time.Now())
	if errReview != nil {
		if errors.Is(errReview, database.ErrNoResult) {
			// Raced with another reviewer.
			return Appeal{}, errors.Join(ErrAppealNotPending, domain.ErrInvalidState)
		}

		return Appeal{}, errReview
	}

	u.shifts.RecordAction(ctx, reviewed.CommunityID, profile.ModeratorID, shift.ActionAppealReviewed)
	u.emit(reviewed, domain.ChangeUpdated)

	owning, errOwning := u.bans.repo.ByID(ctx, reviewed.BanID)
	if errOwning != nil {
		slog.Error("Failed to load ban after appeal review", slog.Int64("ban_id", reviewed.BanID),
			slog.String("error", errOwning.Error()))
	} else {
		u.announce(ctx, reviewed.CommunityID, AppealDecisionMessage(reviewed, owning))

		if decision == AppealApproved {
			u.bans.emit(owning, domain.ChangeUpdated)
			u.relay.Enqueue(ctx, relay.Payload{
				BanID:       owning.BanID,
				CommunityID: owning.CommunityID,
				PlayerID:    owning.PlayerID,
				PlayerName:  owning.PlayerName,
				Action:      relay.ActionUnban,
				Reason:      note,
				Embed:       AppealDecisionMessage(reviewed, owning),
			})
		}
	}

	slog.Info("Appeal reviewed", slog.Int64("appeal_id", appealID),
		slog.String("decision", decision.String()), slog.String("moderator_id", profile.ModeratorID))

	return reviewed, nil
}

func (u Appeals) ByID(ctx context.Context, profile auth.Profile, appealID int64) (Appeal, error) {
	appeal, errAppeal := u.repo.ByID(ctx, appealID)
	if errAppeal != nil {
		if errors.Is(errAppeal, database.ErrNoResult) {
			return Appeal{}, errors.Join(ErrAppealDoesNotExist, domain.ErrNotFound)
		}

		return Appeal{}, errAppeal
	}

	if errScope := auth.CheckScope(profile, appeal.CommunityID); errScope != nil {
		return Appeal{}, errors.Join(ErrAppealDoesNotExist, domain.ErrNotFound)
	}

	return appeal, nil
}

func (u Appeals) Query(ctx context.Context, profile auth.Profile, opts AppealQueryOpts) ([]Appeal, error) {
	if opts.CommunityID != "" {
		if errScope := auth.CheckScope(profile, opts.CommunityID); errScope != nil {
			return nil, errScope
		}
	}

	opts.Scope = profile.Scope()

	return u.repo.Query(ctx, opts)
}

// announce posts the embed to the community's appeal channel. Communities
// without settings or without AppealChannelID simply get no appeal log.
func (u Appeals) announce(ctx context.Context, communityID string, embed *discordgo.MessageEmbed) {
	settings, errSettings := u.conf.Community(ctx, communityID)
	if errSettings != nil || settings.AppealChannelID == "" {
		return
	}

	u.notifier.Send(notification.NewDiscord(settings.AppealChannelID, embed))
}

func (u Appeals) emit(appeal Appeal, kind domain.ChangeKind) {
	go u.events.Emit(domain.EntityAppeal, domain.ChangeEvent{
		CommunityID: appeal.CommunityID,
		EntityType:  domain.EntityAppeal,
		EntityID:    appeal.AppealID,
		ChangeKind:  kind,
	})
}
