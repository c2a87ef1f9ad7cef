package ticket

import (
	"fmt"

	"github.com/RoModerate/romoderate/internal/discord"
	"github.com/bwmarrin/discordgo"
)

func CreatedMessage(ticket Ticket) *discordgo.MessageEmbed {
	msgEmbed := discord.NewEmbed(fmt.Sprintf("New ticket #%d: %s", ticket.TicketID, ticket.Title))
	msgEmbed.Embed().
		SetColor(discord.ColourInfo).
		AddField("Category", ticket.Category).
		AddField("Priority", ticket.Priority.String()).
		AddField("Submitter", ticket.SubmitterID)

	if ticket.Description != "" {
		msgEmbed.Embed().SetDescription(ticket.Description)
	}

	return msgEmbed.Message()
}
