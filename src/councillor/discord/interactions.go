package discord

import (
	"github.com/bwmarrin/discordgo"
)

// OptionMap flattens an interaction's options by name. Subcommand options are
// flattened one level down so handlers read both shapes the same way.
func OptionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		options = options[0].Options
	}
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// Subcommand returns the invoked subcommand name, or empty for plain commands.
func Subcommand(i *discordgo.InteractionCreate) string {
	options := i.ApplicationCommandData().Options
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Name
	}
	return ""
}

// MemberHasRole reports whether the interaction member holds the role. An
// empty role id never matches, so unbound positions fail closed.
func MemberHasRole(member *discordgo.Member, roleID string) bool {
	if member == nil || roleID == "" {
		return false
	}
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// IsGuildAdmin reports whether the member carries the Administrator
// permission bit.
func IsGuildAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

// Respond sends an embed as the interaction response.
func Respond(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// RespondSuccess and RespondError are the ephemeral one-liners most handlers
// finish with.
func RespondSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, message string) error {
	return Respond(s, i, SuccessEmbed(message), true)
}

func RespondError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) error {
	return Respond(s, i, ErrorEmbed(message), true)
}

// InteractionUserID returns the acting user's id for both guild and DM
// interactions.
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// InteractionUserName returns the acting user's display name.
func InteractionUserName(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if i.Member.User != nil {
			return i.Member.User.Username
		}
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}
