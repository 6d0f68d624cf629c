// Package executive implements the chancellor's commands: ministries,
// announcements, decrees and meetings.
package executive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"

	"github.com/councilbot/councillor/src/councillor/components/proposals"
	"github.com/councilbot/councillor/src/councillor/discord"
	"github.com/councilbot/councillor/src/councillor/rolesync"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/logx"
	"github.com/councilbot/councillor/src/shared/types"
)

type Component struct {
	store     *store.Store
	rdb       *redis.Client
	syncer    *rolesync.Syncer
	proposals *proposals.Component
}

func New(s *store.Store, rdb *redis.Client, syncer *rolesync.Syncer, p *proposals.Component) *Component {
	return &Component{store: s, rdb: rdb, syncer: syncer, proposals: p}
}

func (c *Component) guild(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *types.Guild {
	guild, err := c.store.Guild(ctx, i.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "This server is not set up yet.")
		return nil
	}
	if err != nil {
		logx.Error("executive", "guild lookup for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return nil
	}
	return guild
}

// isChancellor checks the role binding first and falls back to the recorded
// seat, so the command works even while roles are out of sync.
func (c *Component) isChancellor(ctx context.Context, i *discordgo.InteractionCreate, guild *types.Guild) bool {
	if discord.MemberHasRole(i.Member, guild.ChancellorRoleID) {
		return true
	}
	councillor, err := c.store.Councillor(ctx, discord.InteractionUserID(i), guild.ID)
	return err == nil && councillor.IsChancellor
}

func (c *Component) chancellorOnly(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, guild *types.Guild) bool {
	if c.isChancellor(ctx, i, guild) {
		return true
	}
	_ = discord.RespondError(s, i, "Only the chancellor can do that.")
	return false
}

func (c *Component) HandleMinistry(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild := c.guild(ctx, s, i)
	if guild == nil {
		return
	}

	sub := discord.Subcommand(i)
	if sub == "list" {
		c.listMinistries(ctx, s, i)
		return
	}
	if !c.chancellorOnly(ctx, s, i, guild) {
		return
	}

	switch sub {
	case "create":
		c.createMinistry(ctx, s, i)
	case "assign":
		c.assignMinister(ctx, s, i, guild)
	case "dissolve":
		c.dissolveMinistry(ctx, s, i)
	default:
		_ = discord.RespondError(s, i, "Unknown ministry action.")
	}
}

func (c *Component) createMinistry(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := discord.OptionMap(i)
	name := discord.Sanitize(opts["name"].StringValue())
	description := ""
	if opt, ok := opts["description"]; ok {
		description = discord.Sanitize(opt.StringValue())
	}
	if name == "" {
		_ = discord.RespondError(s, i, "The ministry needs a name.")
		return
	}

	_, err := c.store.CreateMinistry(ctx, i.GuildID, name, description, discord.InteractionUserID(i))
	if errors.Is(err, store.ErrAlreadyExists) {
		_ = discord.RespondError(s, i, fmt.Sprintf("A ministry named **%s** already exists.", name))
		return
	}
	if err != nil {
		logx.Error("executive", "creating ministry: %v", err)
		_ = discord.RespondError(s, i, "Could not create the ministry.")
		return
	}

	c.audit(ctx, i, "create_ministry", map[string]interface{}{"name": name})
	logx.Info("executive", "ministry %q created in guild %s", name, i.GuildID)
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("The Ministry of **%s** has been established.", name))
}

func (c *Component) assignMinister(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, guild *types.Guild) {
	opts := discord.OptionMap(i)
	name := discord.Sanitize(opts["name"].StringValue())
	minister := opts["minister"].UserValue(s)

	ministry, err := c.store.MinistryByName(ctx, i.GuildID, name)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, fmt.Sprintf("No ministry named **%s** exists.", name))
		return
	}
	if err != nil {
		logx.Error("executive", "ministry lookup: %v", err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}

	fields := map[string]interface{}{"minister_discord_id": minister.ID}
	if opt, ok := opts["deputy"]; ok {
		fields["deputy_discord_id"] = opt.UserValue(s).ID
	}
	if err := c.store.UpdateMinistry(ctx, ministry.ID, fields); err != nil {
		logx.Error("executive", "assigning minister: %v", err)
		_ = discord.RespondError(s, i, "Could not appoint the minister.")
		return
	}

	// Take the minister role from the outgoing holder and give it to the new one.
	if ministry.MinisterDiscordID != "" && ministry.MinisterDiscordID != minister.ID {
		for _, warn := range c.syncer.EnsureLacks(guild.ID, guild.MinisterRoleID, []string{ministry.MinisterDiscordID}) {
			logx.Warn("executive", "%v", warn)
		}
	}
	for _, warn := range c.syncer.EnsureHas(guild.ID, guild.MinisterRoleID, []string{minister.ID}) {
		logx.Warn("executive", "%v", warn)
	}
	if ministry.RoleIDs != "" {
		c.syncer.MinistryRoles(guild.ID, strings.Split(ministry.RoleIDs, ","), minister.ID)
	}

	c.audit(ctx, i, "assign_minister", map[string]interface{}{"ministry": name, "minister": minister.ID})
	_ = discord.RespondSuccess(s, i,
		fmt.Sprintf("<@%s> has been appointed Minister of **%s**.", minister.ID, name))
}

func (c *Component) dissolveMinistry(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := discord.Sanitize(discord.OptionMap(i)["name"].StringValue())

	ministry, err := c.store.MinistryByName(ctx, i.GuildID, name)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, fmt.Sprintf("No ministry named **%s** exists.", name))
		return
	}
	if err != nil {
		logx.Error("executive", "ministry lookup: %v", err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}

	if err := c.store.DissolveMinistry(ctx, ministry.ID); err != nil {
		logx.Error("executive", "dissolving ministry: %v", err)
		_ = discord.RespondError(s, i, "Could not dissolve the ministry.")
		return
	}

	c.audit(ctx, i, "dissolve_ministry", map[string]interface{}{"ministry": name})
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("The Ministry of **%s** has been dissolved.", name))
}

func (c *Component) listMinistries(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	ministries, err := c.store.Ministries(ctx, i.GuildID)
	if err != nil {
		logx.Error("executive", "listing ministries: %v", err)
		_ = discord.RespondError(s, i, "Could not load the ministries.")
		return
	}
	if len(ministries) == 0 {
		_ = discord.Respond(s, i, discord.NoticeEmbed("Ministries", "No ministries exist."), false)
		return
	}

	var lines []string
	for _, m := range ministries {
		line := "• **" + m.Name + "**"
		if m.MinisterDiscordID != "" {
			line += fmt.Sprintf(" — <@%s>", m.MinisterDiscordID)
		} else {
			line += " — vacant"
		}
		if m.DeputyDiscordID != "" {
			line += fmt.Sprintf(" (deputy <@%s>)", m.DeputyDiscordID)
		}
		lines = append(lines, line)
	}
	_ = discord.Respond(s, i, discord.NoticeEmbed("Ministries", strings.Join(lines, "\n")), false)
}

func (c *Component) HandleAnnounce(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild := c.guild(ctx, s, i)
	if guild == nil || !c.chancellorOnly(ctx, s, i, guild) {
		return
	}
	if guild.AnnouncementChannelID == "" {
		_ = discord.RespondError(s, i, "No announcement channel is bound. An administrator must run /set_channel.")
		return
	}

	opts := discord.OptionMap(i)
	title := discord.Sanitize(opts["title"].StringValue())
	message := discord.Sanitize(opts["message"].StringValue())
	pingEveryone := false
	if opt, ok := opts["ping_everyone"]; ok {
		pingEveryone = opt.BoolValue()
	}

	send := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{discord.NoticeEmbed("📣 "+title, message)},
	}
	if pingEveryone {
		send.Content = "@everyone"
		if guild.CitizenRoleID != "" {
			send.Content = "<@&" + guild.CitizenRoleID + ">"
		}
	}
	if _, err := s.ChannelMessageSendComplex(guild.AnnouncementChannelID, send); err != nil {
		logx.Error("executive", "posting announcement: %v", err)
		_ = discord.RespondError(s, i, "Could not post the announcement.")
		return
	}

	c.audit(ctx, i, "announce", map[string]interface{}{"title": title})
	_ = discord.RespondSuccess(s, i, "Announcement posted.")
}

// HandleDecree opens a decree confirmation vote through the proposal
// machinery, so decrees resolve exactly like any other voting.
func (c *Component) HandleDecree(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild := c.guild(ctx, s, i)
	if guild == nil || !c.chancellorOnly(ctx, s, i, guild) {
		return
	}
	if guild.VotingChannelID == "" {
		_ = discord.RespondError(s, i, "No voting channel is bound. An administrator must run /set_channel.")
		return
	}

	opts := discord.OptionMap(i)
	title := discord.Sanitize(opts["title"].StringValue())
	text := discord.Sanitize(opts["text"].StringValue())
	if title == "" || text == "" {
		_ = discord.RespondError(s, i, "Title and text must not be empty.")
		return
	}

	c.proposals.OpenDecree(ctx, s, i, guild, title, text, discord.InteractionUserID(i))
}

func (c *Component) HandleCallMeeting(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild := c.guild(ctx, s, i)
	if guild == nil {
		return
	}
	canCall := discord.MemberHasRole(i.Member, guild.PresidentRoleID) ||
		discord.MemberHasRole(i.Member, guild.VicePresidentRoleID)
	if !canCall {
		_ = discord.RespondError(s, i, "Only the president or vice president can call a meeting.")
		return
	}

	channelID := guild.AnnouncementChannelID
	if channelID == "" {
		channelID = guild.VotingChannelID
	}
	if channelID == "" {
		_ = discord.RespondError(s, i, "No channel is bound for announcements.")
		return
	}

	opts := discord.OptionMap(i)
	topic := discord.Sanitize(opts["topic"].StringValue())
	when := discord.Sanitize(opts["time"].StringValue())

	content := ""
	if guild.CouncillorRoleID != "" {
		content = "<@&" + guild.CouncillorRoleID + ">"
	}
	send := &discordgo.MessageSend{
		Content: content,
		Embeds: []*discordgo.MessageEmbed{discord.NoticeEmbed("🏛️ Council meeting",
			fmt.Sprintf("**Topic:** %s\n**When:** %s", topic, when))},
	}
	if _, err := s.ChannelMessageSendComplex(channelID, send); err != nil {
		logx.Error("executive", "posting meeting call: %v", err)
		_ = discord.RespondError(s, i, "Could not post the meeting call.")
		return
	}

	c.audit(ctx, i, "call_meeting", map[string]interface{}{"topic": topic, "time": when})
	_ = discord.RespondSuccess(s, i, "The council has been summoned.")
}

func (c *Component) audit(ctx context.Context, i *discordgo.InteractionCreate, action string, details map[string]interface{}) {
	err := c.store.Audit(ctx, c.rdb, types.AuditLog{
		GuildID:   i.GuildID,
		Type:      "chancellor_action",
		Action:    action,
		DiscordID: discord.InteractionUserID(i),
		Details:   data.MarshalDetails(details),
	})
	if err != nil {
		logx.Warn("executive", "audit write failed: %v", err)
	}
}
