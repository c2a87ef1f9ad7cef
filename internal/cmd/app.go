package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/discord"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/RoModerate/romoderate/internal/metrics"
	"github.com/RoModerate/romoderate/internal/notification"
	"github.com/RoModerate/romoderate/internal/player"
	"github.com/RoModerate/romoderate/internal/realtime"
	"github.com/RoModerate/romoderate/internal/relay"
	"github.com/RoModerate/romoderate/internal/shift"
	"github.com/RoModerate/romoderate/internal/ticket"
	"github.com/RoModerate/romoderate/pkg/fp"
	"github.com/RoModerate/romoderate/pkg/log"
	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"
)

var (
	BuildVersion = "master" //nolint:gochecknoglobals
	BuildCommit  = ""       //nolint:gochecknoglobals
	BuildDate    = ""       //nolint:gochecknoglobals
)

type RoModerate struct {
	staticConfig config.Static
	config       *config.Configuration
	database     database.Database
	auth         *auth.Authentication
	bot          *discord.Discord
	notifier     notification.Notifier
	relay        *relay.Gateway
	bans         ban.Bans
	appeals      ban.Appeals
	expirations  *ban.ExpirationMonitor
	tickets      ticket.Tickets
	shifts       shift.Shifts
	standings    player.Standings
	coordinator  *realtime.Coordinator
	metrics      metrics.Metrics
	sentry       *sentry.Client

	broadcaster *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]

	logCloser func()
}

func NewRoModerate() (*RoModerate, error) {
	staticConfig, errStatic := config.ReadStatic(cfgFile)
	if errStatic != nil {
		slog.Error("Failed to read static config", log.ErrAttr(errStatic))

		return nil, errStatic
	}

	return &RoModerate{
		staticConfig: staticConfig,
		broadcaster:  fp.NewBroadcaster[domain.EntityType, domain.ChangeEvent](),
	}, nil
}

func (app *RoModerate) Init(ctx context.Context) error {
	conf := app.staticConfig

	app.setupSentry()
	app.logCloser = log.MustCreateLogger(ctx, conf.LogFilePath, conf.SlogLevel(), conf.SentryDSN != "", BuildVersion)

	slog.Info("Starting romoderate...",
		slog.String("version", BuildVersion),
		slog.String("commit", BuildCommit),
		slog.String("date", BuildDate))

	dbConn := database.New(conf.DatabaseDSN, conf.DatabaseAutoMigrate, conf.DatabaseLogQueries)
	if errConnect := dbConn.Connect(ctx); errConnect != nil {
		slog.Error("Cannot initialize database", log.ErrAttr(errConnect))

		return errConnect
	}

	app.database = dbConn

	app.config = config.NewConfiguration(conf, config.NewSettingsRepository(app.database))
	if errReload := app.config.Reload(ctx); errReload != nil {
		slog.Error("Failed to load community settings", log.ErrAttr(errReload))

		return errReload
	}

	app.notifier = notification.NullNotifier{}

	if conf.DiscordEnabled {
		bot, errDiscord := discord.New(conf.DiscordToken)
		if errDiscord != nil {
			return errDiscord
		}

		app.bot = bot
		app.notifier = bot
	}

	banRepo := ban.NewRepository(app.database)

	app.auth = auth.New(conf.JWTSigningKey)
	app.relay = relay.NewGateway(relay.NewOpenCloudClient(conf.RobloxAPIBaseURL), app.notifier, app.config, banRepo)
	app.shifts = shift.NewShifts(shift.NewRepository(app.database), app.broadcaster)
	app.bans = ban.NewBans(banRepo, app.shifts, app.relay, app.broadcaster)
	app.appeals = ban.NewAppeals(ban.NewAppealRepository(app.database), app.bans, app.shifts, app.relay,
		app.config, app.notifier, app.broadcaster)
	app.expirations = ban.NewExpirationMonitor(banRepo, app.notifier, app.config, app.broadcaster)
	app.tickets = ticket.NewTickets(ticket.NewRepository(app.database), app.shifts, app.notifier, app.config, app.broadcaster)
	app.standings = player.NewStandings(app.bans, conf.StandingPageSize)
	app.coordinator = realtime.NewCoordinator(app.broadcaster)
	app.metrics = metrics.New(app.broadcaster)

	return nil
}

func (app *RoModerate) setupSentry() {
	if app.staticConfig.SentryDSN == "" {
		slog.Info("Sentry.io support is disabled. To enable, set sentry_dsn.")

		return
	}

	sentryClient, errSentry := log.NewSentryClient(app.staticConfig.SentryDSN, true, 0.25,
		BuildVersion, app.staticConfig.GinMode)
	if errSentry != nil {
		slog.Error("Failed to setup sentry client")
	} else {
		slog.Info("Sentry.io support is enabled.")
		app.sentry = sentryClient
	}
}

func (app *RoModerate) StartBackground(ctx context.Context) {
	go app.relay.Start(ctx)
	go app.coordinator.Start(ctx)
	go app.metrics.Start(ctx)
	go app.expirations.Start(ctx, time.Minute)
}

func (app *RoModerate) Serve(rootCtx context.Context) error {
	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf := app.staticConfig

	router := httphelper.CreateRouter(httphelper.RouterOpts{
		Mode:              conf.GinMode,
		HTTPLogEnabled:    conf.HTTPLogEnabled,
		LogLevel:          conf.SlogLevel(),
		SentryDSN:         conf.SentryDSN,
		Version:           BuildVersion,
		PProfEnabled:      conf.PProfEnabled,
		PrometheusEnabled: conf.PrometheusEnabled,
		HTTPCORSEnabled:   conf.HTTPCORSEnabled,
		CORSOrigins:       conf.HTTPCORSOrigins,
	})

	ban.NewHandlerBans(router, app.bans, app.auth)
	ban.NewHandlerAppeals(router, app.appeals, app.auth)
	ticket.NewHandlerTickets(router, app.tickets, app.auth)
	shift.NewHandlerShifts(router, app.shifts, app.auth)
	player.NewHandlerPlayer(router, app.standings, app.auth)
	config.NewHandlerSettings(router, app.config, app.auth)
	realtime.NewHandlerRealtime(router, app.coordinator, app.auth, conf.HTTPCORSOrigins)

	httpServer := httphelper.NewServer(conf.Addr(), router)

	group, groupCtx := errgroup.WithContext(ctx)

	if app.bot != nil {
		group.Go(func() error {
			return app.bot.Start(groupCtx)
		})
	}

	group.Go(func() error {
		slog.Info("Starting HTTP server", slog.String("address", conf.Addr()))

		if errServe := httpServer.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		slog.Info("Shutting down HTTP service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx) //nolint:contextcheck
	})

	if errWait := group.Wait(); errWait != nil {
		slog.Error("Service returned error", log.ErrAttr(errWait))

		return errWait
	}

	slog.Info("Exiting...")

	return nil
}

func (app *RoModerate) Close(_ context.Context) error {
	if app.database != nil {
		if errClose := app.database.Close(); errClose != nil {
			slog.Error("Failed to close database cleanly", log.ErrAttr(errClose))
		}
	}

	if app.sentry != nil {
		app.sentry.Flush(2 * time.Second)
	}

	if app.logCloser != nil {
		app.logCloser()
	}

	return nil
}
