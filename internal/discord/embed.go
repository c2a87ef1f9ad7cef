package discord

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
	embed "github.com/leighmacdonald/discordgo-embed"
)

const (
	ColourSuccess = 302673
	ColourInfo    = 3581519
	ColourWarn    = 14327864
	ColourError   = 13631488

	providerName = "RoModerate"
)

// NewEmbed constructs a new discord embed message. This must not be chained if
// using the helper methods below.
func NewEmbed(args ...string) *Embed {
	newEmbed := embed.
		NewEmbed().
		SetFooter(providerName, "")

	if len(args) == 2 {
		newEmbed = newEmbed.SetTitle(args[0]).
			SetDescription(args[1])
	} else if len(args) == 1 {
		newEmbed = newEmbed.SetTitle(args[0])
	}

	return &Embed{emb: newEmbed}
}

type Embed struct {
	emb *embed.Embed
}

func (e *Embed) Embed() *embed.Embed {
	return e.emb
}

func (e *Embed) Message() *discordgo.MessageEmbed {
	return e.emb.Truncate().MessageEmbed
}

// AddFieldsPlayer attaches the standard Roblox player identity fields.
func (e *Embed) AddFieldsPlayer(playerID int64, playerName string) *Embed {
	e.emb.AddField("Player", playerName).MakeFieldInline()
	e.emb.AddField("Roblox ID", strconv.FormatInt(playerID, 10)).MakeFieldInline()

	return e
}

func (e *Embed) AddModerator(moderatorID string) *Embed {
	e.emb.AddField("Moderator", "<@"+moderatorID+">").MakeFieldInline()

	return e
}

func ErrorMessage(command string, err error) *discordgo.MessageEmbed {
	return NewEmbed("Error Returned").Embed().
		SetColor(ColourError).
		AddField("command", command).
		SetDescription(err.Error()).MessageEmbed
}
