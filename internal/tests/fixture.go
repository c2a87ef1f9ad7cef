package tests

import (
	"context"
	"sync"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/notification"
	"github.com/RoModerate/romoderate/internal/player"
	"github.com/RoModerate/romoderate/internal/relay"
	"github.com/RoModerate/romoderate/internal/shift"
	"github.com/RoModerate/romoderate/internal/ticket"
	"github.com/RoModerate/romoderate/pkg/fp"
	"github.com/gin-gonic/gin"
)

// StaticAuthenticator implements httphelper.Authenticator with a fixed
// profile, bypassing token validation in handler tests.
type StaticAuthenticator struct {
	Profile auth.Profile
}

func (s *StaticAuthenticator) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		auth.SetProfile(ctx, s.Profile)
	}
}

func (s *StaticAuthenticator) MiddlewareWS() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		auth.SetProfile(ctx, s.Profile)
	}
}

// FakeEnforcer stands in for the Roblox Open Cloud client. FailCount calls
// fail before deliveries start succeeding.
type FakeEnforcer struct {
	mu        sync.Mutex
	FailCount int
	FailWith  error
	Calls     []relay.Payload
}

func (f *FakeEnforcer) Restrict(_ context.Context, _ int64, _ string, payload relay.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, payload)

	if f.FailCount > 0 {
		f.FailCount--

		return f.FailWith
	}

	return nil
}

func (f *FakeEnforcer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.Calls)
}

// RecordingNotifier captures payloads instead of posting to Discord.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Payload
}

func (n *RecordingNotifier) Send(payload notification.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, payload)
}

func (n *RecordingNotifier) Sent() []notification.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]notification.Payload, len(n.sent))
	copy(out, n.sent)

	return out
}

// Fixture wires the full usecase stack over the memory repositories.
type Fixture struct {
	DB          *MemoryDB
	BanRepo     *MemoryBanRepository
	AppealRepo  *MemoryAppealRepository
	TicketRepo  *MemoryTicketRepository
	ShiftRepo   *MemoryShiftRepository
	Settings    *MemorySettingsRepository
	Config      *config.Configuration
	Broadcaster *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]
	Enforcer    *FakeEnforcer
	Notifier    *RecordingNotifier
	Relay       *relay.Gateway
	Shifts      shift.Shifts
	Bans        ban.Bans
	Appeals     ban.Appeals
	Tickets     ticket.Tickets
	Standings   player.Standings
}

func NewFixture() *Fixture {
	gin.SetMode(gin.TestMode)

	memory := NewMemoryDB()

	var (
		banRepo     = NewMemoryBanRepository(memory)
		appealRepo  = NewMemoryAppealRepository(memory)
		ticketRepo  = NewMemoryTicketRepository(memory)
		shiftRepo   = NewMemoryShiftRepository(memory)
		settings    = NewMemorySettingsRepository(memory)
		broadcaster = fp.NewBroadcaster[domain.EntityType, domain.ChangeEvent]()
		enforcer    = &FakeEnforcer{}
		notifier    = &RecordingNotifier{}
	)

	conf := config.NewConfiguration(config.Static{StandingPageSize: 25}, settings)
	gateway := relay.NewGateway(enforcer, notifier, conf, banRepo)
	shifts := shift.NewShifts(shiftRepo, broadcaster)
	bans := ban.NewBans(banRepo, shifts, gateway, broadcaster)

	return &Fixture{
		DB:          memory,
		BanRepo:     banRepo,
		AppealRepo:  appealRepo,
		TicketRepo:  ticketRepo,
		ShiftRepo:   shiftRepo,
		Settings:    settings,
		Config:      conf,
		Broadcaster: broadcaster,
		Enforcer:    enforcer,
		Notifier:    notifier,
		Relay:       gateway,
		Shifts:      shifts,
		Bans:        bans,
		Appeals:     ban.NewAppeals(appealRepo, bans, shifts, gateway, conf, notifier, broadcaster),
		Tickets:     ticket.NewTickets(ticketRepo, shifts, notifier, conf, broadcaster),
		Standings:   player.NewStandings(bans, 25),
	}
}

// Moderator builds a profile scoped to the given communities.
func Moderator(moderatorID string, communities ...string) auth.Profile {
	return auth.Profile{
		ModeratorID: moderatorID,
		Name:        "mod-" + moderatorID,
		Communities: communities,
	}
}
