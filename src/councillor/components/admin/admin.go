// Package admin implements the guild provisioning and configuration
// commands. Everything here is gated on the Administrator permission or the
// configured bot admin.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"

	"github.com/councilbot/councillor/src/councillor/config"
	"github.com/councilbot/councillor/src/councillor/discord"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/logx"
	"github.com/councilbot/councillor/src/shared/types"
)

type Component struct {
	store *store.Store
	rdb   *redis.Client
	cfg   config.Config
}

func New(s *store.Store, rdb *redis.Client, cfg config.Config) *Component {
	return &Component{store: s, rdb: rdb, cfg: cfg}
}

func (c *Component) authorized(i *discordgo.InteractionCreate) bool {
	if discord.IsGuildAdmin(i) {
		return true
	}
	return c.cfg.AdminUserID != "" && discord.InteractionUserID(i) == c.cfg.AdminUserID
}

func (c *Component) HandleSetup(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !c.authorized(i) {
		_ = discord.RespondError(s, i, "You need the Administrator permission to run setup.")
		return
	}

	description := ""
	if opt, ok := discord.OptionMap(i)["description"]; ok {
		description = discord.Sanitize(opt.StringValue())
	}

	guildName := i.GuildID
	if g, err := s.Guild(i.GuildID); err == nil {
		guildName = g.Name
	}

	_, err := c.store.CreateGuild(ctx, i.GuildID, guildName, description,
		c.cfg.DaysRequirement, c.cfg.MaxCouncillors)
	if errors.Is(err, store.ErrAlreadyExists) {
		_ = discord.RespondError(s, i, "This server is already set up. Use /show_config to inspect it.")
		return
	}
	if err != nil {
		logx.Error("admin", "setup for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Setup failed, try again later.")
		return
	}

	c.audit(ctx, i, "setup", map[string]interface{}{"description": description})
	logx.Success("admin", "provisioned guild %s", i.GuildID)
	_ = discord.RespondSuccess(s, i,
		"Council provisioned. Bind roles with /set_role and channels with /set_channel.")
}

func (c *Component) HandleShowConfig(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !c.authorized(i) {
		_ = discord.RespondError(s, i, "You need the Administrator permission to view the configuration.")
		return
	}
	guild, err := c.store.Guild(ctx, i.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "This server is not set up yet. Run /setup first.")
		return
	}
	if err != nil {
		logx.Error("admin", "show config for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not load the configuration.")
		return
	}

	role := func(id string) string {
		if id == "" {
			return "not bound"
		}
		return "<@&" + id + ">"
	}
	channel := func(id string) string {
		if id == "" {
			return "not bound"
		}
		return "<#" + id + ">"
	}

	embed := &discordgo.MessageEmbed{
		Title: "Councillor configuration",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Enabled", Value: fmt.Sprintf("%t", guild.Enabled), Inline: true},
			{Name: "Days requirement", Value: fmt.Sprintf("%d", guild.DaysRequirement), Inline: true},
			{Name: "Max councillors", Value: fmt.Sprintf("%d", guild.MaxCouncillors), Inline: true},
			{Name: "Councillor role", Value: role(guild.CouncillorRoleID), Inline: true},
			{Name: "Chancellor role", Value: role(guild.ChancellorRoleID), Inline: true},
			{Name: "Minister role", Value: role(guild.MinisterRoleID), Inline: true},
			{Name: "President role", Value: role(guild.PresidentRoleID), Inline: true},
			{Name: "Vice president role", Value: role(guild.VicePresidentRoleID), Inline: true},
			{Name: "Judiciary role", Value: role(guild.JudiciaryRoleID), Inline: true},
			{Name: "Citizen role", Value: role(guild.CitizenRoleID), Inline: true},
			{Name: "Voting channel", Value: channel(guild.VotingChannelID), Inline: true},
			{Name: "Announcement channel", Value: channel(guild.AnnouncementChannelID), Inline: true},
		},
	}
	_ = discord.Respond(s, i, embed, true)
}

var roleColumns = map[string]string{
	"councillor":     "councillor_role_id",
	"chancellor":     "chancellor_role_id",
	"minister":       "minister_role_id",
	"president":      "president_role_id",
	"vice_president": "vice_president_role_id",
	"judiciary":      "judiciary_role_id",
	"citizen":        "citizen_role_id",
}

func (c *Component) HandleSetRole(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !c.authorized(i) {
		_ = discord.RespondError(s, i, "You need the Administrator permission to bind roles.")
		return
	}
	opts := discord.OptionMap(i)
	position := opts["position"].StringValue()
	role := opts["role"].RoleValue(s, i.GuildID)

	column, ok := roleColumns[position]
	if !ok {
		_ = discord.RespondError(s, i, "Unknown position.")
		return
	}
	if err := c.store.UpdateGuild(ctx, i.GuildID, map[string]interface{}{column: role.ID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = discord.RespondError(s, i, "This server is not set up yet. Run /setup first.")
			return
		}
		logx.Error("admin", "set role for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not save the role binding.")
		return
	}

	c.audit(ctx, i, "set_role", map[string]interface{}{"position": position, "role": role.ID})
	_ = discord.RespondSuccess(s, i,
		fmt.Sprintf("Bound the %s position to <@&%s>.", strings.ReplaceAll(position, "_", " "), role.ID))
}

func (c *Component) HandleSetChannel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !c.authorized(i) {
		_ = discord.RespondError(s, i, "You need the Administrator permission to bind channels.")
		return
	}
	opts := discord.OptionMap(i)
	purpose := opts["purpose"].StringValue()
	ch := opts["channel"].ChannelValue(s)

	column := "voting_channel_id"
	if purpose == "announcement" {
		column = "announcement_channel_id"
	}
	if err := c.store.UpdateGuild(ctx, i.GuildID, map[string]interface{}{column: ch.ID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = discord.RespondError(s, i, "This server is not set up yet. Run /setup first.")
			return
		}
		logx.Error("admin", "set channel for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not save the channel binding.")
		return
	}

	c.audit(ctx, i, "set_channel", map[string]interface{}{"purpose": purpose, "channel": ch.ID})
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("Bound the %s channel to <#%s>.", purpose, ch.ID))
}

func (c *Component) HandleSetRequirement(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !c.authorized(i) {
		_ = discord.RespondError(s, i, "You need the Administrator permission to change settings.")
		return
	}
	opts := discord.OptionMap(i)
	setting := opts["setting"].StringValue()
	value := int(opts["value"].IntValue())

	if value < 0 {
		_ = discord.RespondError(s, i, "The value must not be negative.")
		return
	}
	if setting == "max_councillors" && value < 1 {
		_ = discord.RespondError(s, i, "The council needs at least one seat.")
		return
	}

	if err := c.store.UpdateGuild(ctx, i.GuildID, map[string]interface{}{setting: value}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = discord.RespondError(s, i, "This server is not set up yet. Run /setup first.")
			return
		}
		logx.Error("admin", "set requirement for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not save the setting.")
		return
	}

	c.audit(ctx, i, "set_requirement", map[string]interface{}{"setting": setting, "value": value})
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("Set %s to %d.", strings.ReplaceAll(setting, "_", " "), value))
}

func (c *Component) HandleToggleBot(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !c.authorized(i) {
		_ = discord.RespondError(s, i, "You need the Administrator permission to toggle the bot.")
		return
	}
	guild, err := c.store.Guild(ctx, i.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "This server is not set up yet. Run /setup first.")
		return
	}
	if err != nil {
		logx.Error("admin", "toggle for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not toggle the bot.")
		return
	}

	next := !guild.Enabled
	if err := c.store.UpdateGuild(ctx, i.GuildID, map[string]interface{}{"enabled": next}); err != nil {
		logx.Error("admin", "toggle for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not toggle the bot.")
		return
	}

	c.audit(ctx, i, "toggle_bot", map[string]interface{}{"enabled": next})
	state := "disabled"
	if next {
		state = "enabled"
	}
	_ = discord.RespondSuccess(s, i, "The bot is now "+state+" on this server.")
}

func (c *Component) audit(ctx context.Context, i *discordgo.InteractionCreate, action string, details map[string]interface{}) {
	err := c.store.Audit(ctx, c.rdb, types.AuditLog{
		GuildID:   i.GuildID,
		Type:      "admin",
		Action:    action,
		DiscordID: discord.InteractionUserID(i),
		Details:   data.MarshalDetails(details),
	})
	if err != nil {
		logx.Warn("admin", "audit write failed: %v", err)
	}
}
