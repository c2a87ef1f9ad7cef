package ban

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/RoModerate/romoderate/internal/discord"
)

func BanMessage(ban Ban) *discordgo.MessageEmbed {
	msgEmbed := discord.NewEmbed("Ban issued")
	msgEmbed.Embed().
		SetColor(discord.ColourError).
		AddField("Reason", ban.Reason).
		AddField("Kind", ban.Kind.String())

	if ban.ValidUntil != nil {
		msgEmbed.Embed().AddField("Expires", humanize.Time(*ban.ValidUntil))
	}

	return msgEmbed.
		AddFieldsPlayer(ban.PlayerID, ban.PlayerName).
		AddModerator(ban.IssuedBy).
		Message()
}

func UnbanMessage(ban Ban, moderatorID string) *discordgo.MessageEmbed {
	msgEmbed := discord.NewEmbed("Ban lifted")
	msgEmbed.Embed().SetColor(discord.ColourSuccess)

	if ban.UnbanReason != "" {
		msgEmbed.Embed().AddField("Reason", ban.UnbanReason)
	}

	return msgEmbed.
		AddFieldsPlayer(ban.PlayerID, ban.PlayerName).
		AddModerator(moderatorID).
		Message()
}

func BanExpiredMessage(ban Ban) *discordgo.MessageEmbed {
	msgEmbed := discord.NewEmbed("Ban expired")
	msgEmbed.Embed().
		SetColor(discord.ColourInfo).
		AddField("Reason", ban.Reason).
		AddField("Issued", humanize.Time(ban.CreatedOn))

	return msgEmbed.
		AddFieldsPlayer(ban.PlayerID, ban.PlayerName).
		Message()
}

func AppealSubmittedMessage(appeal Appeal, ban Ban) *discordgo.MessageEmbed {
	msgEmbed := discord.NewEmbed("Appeal submitted", appeal.Body)
	msgEmbed.Embed().
		SetColor(discord.ColourWarn).
		AddField("Ban reason", ban.Reason).
		AddField("Submitted", humanize.Time(appeal.CreatedOn))

	return msgEmbed.
		AddFieldsPlayer(ban.PlayerID, ban.PlayerName).
		Message()
}

func AppealDecisionMessage(appeal Appeal, ban Ban) *discordgo.MessageEmbed {
	colour := discord.ColourError
	if appeal.Status == AppealApproved {
		colour = discord.ColourSuccess
	}

	msgEmbed := discord.NewEmbed("Appeal " + appeal.Status.String())
	msgEmbed.Embed().
		SetColor(colour).
		AddField("Ban reason", ban.Reason)

	if appeal.ReviewNote != "" {
		msgEmbed.Embed().AddField("Note", appeal.ReviewNote)
	}

	reviewedOn := time.Now()
	if appeal.ReviewedOn != nil {
		reviewedOn = *appeal.ReviewedOn
	}

	msgEmbed.Embed().AddField("Reviewed", humanize.Time(reviewedOn))

	return msgEmbed.
		AddFieldsPlayer(ban.PlayerID, ban.PlayerName).
		AddModerator(appeal.ReviewedBy).
		Message()
}
