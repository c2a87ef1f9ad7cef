// Package discord owns the bot session used to relay committed moderation
// actions into community log channels.
package discord

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/RoModerate/romoderate/internal/notification"
	"github.com/RoModerate/romoderate/pkg/log"
)

var (
	ErrSessionCreate = errors.New("failed to create discord session")
	ErrSessionOpen   = errors.New("failed to open discord connection")
)

const sendQueueSize = 64

type Discord struct {
	session *discordgo.Session
	token   string
	queue   chan notification.Payload
}

func New(token string) (*Discord, error) {
	session, errSession := discordgo.New("Bot " + token)
	if errSession != nil {
		return nil, errors.Join(errSession, ErrSessionCreate)
	}

	session.UserAgent = "romoderate (https://github.com/RoModerate/romoderate)"
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	bot := &Discord{
		session: session,
		token:   token,
		queue:   make(chan notification.Payload, sendQueueSize),
	}

	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onDisconnect)

	return bot, nil
}

// Start opens the gateway connection and drains the send queue until the
// context ends.
func (bot *Discord) Start(ctx context.Context) error {
	if errOpen := bot.session.Open(); errOpen != nil {
		return errors.Join(errOpen, ErrSessionOpen)
	}

	defer func() {
		if errClose := bot.session.Close(); errClose != nil {
			slog.Error("Failed to cleanly shutdown discord session", log.ErrAttr(errClose))
		}
	}()

	for {
		select {
		case payload := <-bot.queue:
			if _, errSend := bot.session.ChannelMessageSendEmbed(payload.ChannelID, payload.Embed); errSend != nil {
				slog.Error("Failed to send discord message",
					slog.String("channel_id", payload.ChannelID), log.ErrAttr(errSend))
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Send implements notification.Notifier. When the queue is full the payload is
// dropped; log messages are best-effort telemetry, not state.
func (bot *Discord) Send(payload notification.Payload) {
	if errValidate := payload.ValidationError(); errValidate != nil {
		slog.Warn("Dropping invalid notification payload", log.ErrAttr(errValidate))

		return
	}

	select {
	case bot.queue <- payload:
	default:
		slog.Warn("Discord send queue full, dropping message", slog.String("channel_id", payload.ChannelID))
	}
}

func (bot *Discord) onReady(session *discordgo.Session, _ *discordgo.Ready) {
	slog.Info("Discord bot connected & ready", slog.String("username", session.State.User.Username))
}

func (bot *Discord) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	slog.Warn("Discord bot disconnected")
}
