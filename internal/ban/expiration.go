package ban

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/notification"
	"github.com/RoModerate/romoderate/pkg/fp"
	"github.com/RoModerate/romoderate/pkg/log"
)

func NewExpirationMonitor(repo Repository, notifier notification.Notifier, conf *config.Configuration,
	events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent],
) *ExpirationMonitor {
	return &ExpirationMonitor{
		repo:     repo,
		notifier: notifier,
		conf:     conf,
		events:   events,
	}
}

// ExpirationMonitor retires temporary bans whose valid_until has passed.
// Expiry is lazy on top of the read path: queries already exclude lapsed
// bans, so the sweep only settles the stored state and tells everyone.
type ExpirationMonitor struct {
	repo     Repository
	notifier notification.Notifier
	conf     *config.Configuration
	events   *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]
}

func (monitor *ExpirationMonitor) Update(ctx context.Context) {
	expired, errExpired := monitor.repo.SweepExpired(ctx, time.Now())
	if errExpired != nil && !errors.Is(errExpired, database.ErrNoResult) {
		slog.Error("Failed to sweep expired bans", log.ErrAttr(errExpired))

		return
	}

	for _, lapsed := range expired {
		go monitor.events.Emit(domain.EntityBan, domain.ChangeEvent{
			CommunityID: lapsed.CommunityID,
			EntityType:  domain.EntityBan,
			EntityID:    lapsed.BanID,
			ChangeKind:  domain.ChangeUpdated,
		})

		settings, errSettings := monitor.conf.Community(ctx, lapsed.CommunityID)
		if errSettings == nil && settings.LogChannelID != "" {
			monitor.notifier.Send(notification.NewDiscord(settings.LogChannelID, BanExpiredMessage(lapsed)))
		}

		slog.Info("Ban expired", slog.Int64("ban_id", lapsed.BanID),
			slog.String("community_id", lapsed.CommunityID),
			slog.Int64("player_id", lapsed.PlayerID))
	}
}

// Start runs the sweep on a fixed cadence until ctx is cancelled.
func (monitor *ExpirationMonitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			monitor.Update(ctx)
		case <-ctx.Done():
			return
		}
	}
}
