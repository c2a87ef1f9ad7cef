// Package notification defines the payloads handed to the Discord side of the
// enforcement relay. Senders are fire-and-forget; a failed notification never
// fails the action that produced it.
package notification

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrChannelEmpty = errors.New("no channel id provided")
	ErrEmbedNil     = errors.New("empty embed message provided")
)

type Severity int

const (
	Info Severity = iota
	Warn
	Error
)

// Payload is one Discord log message bound for a community channel.
type Payload struct {
	ChannelID string
	Severity  Severity
	Embed     *discordgo.MessageEmbed
}

func (payload Payload) ValidationError() error {
	if payload.ChannelID == "" {
		return ErrChannelEmpty
	}

	if payload.Embed == nil {
		return ErrEmbedNil
	}

	return nil
}

func NewDiscord(channelID string, embed *discordgo.MessageEmbed) Payload {
	return Payload{
		ChannelID: channelID,
		Severity:  Info,
		Embed:     embed,
	}
}

// Notifier delivers payloads downstream. Implementations must not block the
// caller beyond enqueueing.
type Notifier interface {
	Send(payload Payload)
}

// NullNotifier drops all payloads. Used when the bot is disabled and in tests.
type NullNotifier struct{}

func (NullNotifier) Send(_ Payload) {}
