// Package relay forwards committed ban state changes to the Roblox Open Cloud
// enforcement API and the community's Discord log channel. Delivery is
// decoupled from the originating request: the moderation record is already
// authoritative by the time a payload reaches this gateway, so a failed
// delivery is recorded on the ban as a status flag and never rolled back.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/notification"
	"github.com/RoModerate/romoderate/pkg/log"
)

var ErrQueueFull = errors.New("relay queue full")

const (
	queueSize      = 256
	deliveryWindow = time.Minute * 5
)

type Action string

const (
	ActionBan   Action = "ban"
	ActionUnban Action = "unban"
)

// Status is persisted on the ban row so operators can reconcile the external
// platform against the moderation record.
type Status int

const (
	StatusPending Status = iota
	StatusDelivered
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Payload carries one committed ban transition to the outside world.
type Payload struct {
	BanID       int64
	CommunityID string
	PlayerID    int64
	PlayerName  string
	Action      Action
	Reason      string
	// Duration is nil for permanent bans and unbans.
	Duration *time.Duration
	// Embed is the pre-rendered Discord log message, nil to skip logging.
	Embed *discordgo.MessageEmbed
}

// Enforcer is the Roblox Open Cloud user-restriction contract. Treated as
// unreliable and possibly slow.
type Enforcer interface {
	Restrict(ctx context.Context, universeID int64, apiKey string, payload Payload) error
}

// StatusWriter records the delivery outcome back onto the ban record.
type StatusWriter interface {
	SetRelayStatus(ctx context.Context, banID int64, status Status) error
}

type Gateway struct {
	enforcer Enforcer
	notif    notification.Notifier
	config   *config.Configuration
	status   StatusWriter
	queue    chan Payload
	attempts int
	backoff  time.Duration
}

func NewGateway(enforcer Enforcer, notif notification.Notifier, conf *config.Configuration, status StatusWriter) *Gateway {
	return &Gateway{
		enforcer: enforcer,
		notif:    notif,
		config:   conf,
		status:   status,
		queue:    make(chan Payload, queueSize),
		attempts: 3,
		backoff:  time.Second * 2,
	}
}

// Enqueue hands a payload to the background worker. Never blocks the caller;
// when the queue is saturated the payload is marked failed immediately.
func (g *Gateway) Enqueue(ctx context.Context, payload Payload) {
	select {
	case g.queue <- payload:
	default:
		slog.Error("Dropping relay payload", slog.Int64("ban_id", payload.BanID), log.ErrAttr(ErrQueueFull))
		g.markStatus(ctx, payload, StatusFailed)
	}
}

// Start consumes the queue until the context ends. Each payload gets its own
// delivery goroutine so a slow platform call cannot back up the queue. An
// in-flight retry dropped by shutdown is reconciled later via relay status.
func (g *Gateway) Start(ctx context.Context) {
	for {
		select {
		case payload := <-g.queue:
			go g.deliver(ctx, payload)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) deliver(ctx context.Context, payload Payload) {
	deliverCtx, cancel := context.WithTimeout(ctx, deliveryWindow)
	defer cancel()

	settings, errSettings := g.config.Community(deliverCtx, payload.CommunityID)
	if errSettings != nil {
		slog.Error("Relay could not load community settings",
			slog.String("community_id", payload.CommunityID), log.ErrAttr(errSettings))
		g.markStatus(ctx, payload, StatusFailed)

		return
	}

	if payload.Embed != nil && settings.LogChannelID != "" {
		g.notif.Send(notification.NewDiscord(settings.LogChannelID, payload.Embed))
	}

	if !settings.EnforcementEnabled {
		g.markStatus(ctx, payload, StatusDelivered)

		return
	}

	if errEnforce := g.enforceWithRetry(deliverCtx, settings, payload); errEnforce != nil {
		slog.Error("Relay delivery failed after retries",
			slog.Int64("ban_id", payload.BanID), slog.String("action", string(payload.Action)),
			log.ErrAttr(errors.Join(errEnforce, domain.ErrRelayFailure)))
		g.markStatus(ctx, payload, StatusFailed)

		return
	}

	g.markStatus(ctx, payload, StatusDelivered)
}

func (g *Gateway) enforceWithRetry(ctx context.Context, settings config.Settings, payload Payload) error {
	var lastErr error

	for attempt := range g.attempts {
		if attempt > 0 {
			wait := g.backoff << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = g.enforcer.Restrict(ctx, settings.RobloxUniverseID, settings.RobloxAPIKey, payload); lastErr == nil {
			return nil
		}

		slog.Warn("Relay enforcement attempt failed",
			slog.Int64("ban_id", payload.BanID), slog.Int("attempt", attempt+1), log.ErrAttr(lastErr))
	}

	return lastErr
}

func (g *Gateway) markStatus(ctx context.Context, payload Payload, status Status) {
	// Use a fresh deadline: the usual cause of a failed delivery is a slow
	// upstream, and the status write must still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*10)
	defer cancel()

	if errStatus := g.status.SetRelayStatus(writeCtx, payload.BanID, status); errStatus != nil {
		slog.Error("Failed to persist relay status",
			slog.Int64("ban_id", payload.BanID), slog.String("status", status.String()),
			log.ErrAttr(errStatus))
	}
}
