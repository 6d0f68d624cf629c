// Package proposals implements proposal creation, the ballot buttons and the
// presidential veto.
package proposals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/councilbot/councillor/src/councillor/discord"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/logx"
	"github.com/councilbot/councillor/src/shared/types"
)

const maxTitleLen = 200

type Component struct {
	store  *store.Store
	rdb    *redis.Client
	locker *data.Locker
}

func New(s *store.Store, rdb *redis.Client, locker *data.Locker) *Component {
	return &Component{store: s, rdb: rdb, locker: locker}
}

func (c *Component) HandlePropose(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild, err := c.store.Guild(ctx, i.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "This server is not set up yet.")
		return
	}
	if err != nil {
		logx.Error("proposals", "guild lookup for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}
	if guild.VotingChannelID == "" {
		_ = discord.RespondError(s, i, "No voting channel is bound. An administrator must run /set_channel.")
		return
	}

	proposer, err := c.store.Councillor(ctx, discord.InteractionUserID(i), i.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "Only sitting councillors can put proposals to a vote.")
		return
	}
	if err != nil {
		logx.Error("proposals", "councillor lookup: %v", err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}

	opts := discord.OptionMap(i)
	kind, err := gov.ParseKind(opts["kind"].StringValue())
	if err != nil || kind.IsElection() {
		_ = discord.RespondError(s, i, "Unknown proposal kind.")
		return
	}
	title := discord.Sanitize(opts["title"].StringValue())
	description := discord.Sanitize(opts["description"].StringValue())
	if title == "" || description == "" {
		_ = discord.RespondError(s, i, "Title and description must not be empty.")
		return
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}

	c.openProposal(ctx, s, i, guild, kind, title, description, proposer.ID)
}

// openProposal creates the voting, posts the ballot message and links the
// two. Shared with the chancellor's decree command.
func (c *Component) openProposal(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate,
	guild *types.Guild, kind gov.Kind, title, description, proposerID string) {

	cfg := kind.Config()
	now := time.Now().UTC()
	end := now.Add(time.Duration(cfg.VotingDays) * 24 * time.Hour)

	voting := &types.Voting{
		ID:                 uuid.NewString(),
		Kind:               string(kind),
		Status:             string(gov.StatusVoting),
		Title:              title,
		Description:        description,
		CouncilID:          store.CouncilID(guild.ID),
		ProposerID:         proposerID,
		VotingStart:        &now,
		VotingEnd:          end,
		RequiredPercentage: cfg.RequiredPercentage,
	}
	if err := c.store.CreateVoting(ctx, voting); err != nil {
		logx.Error("proposals", "creating voting: %v", err)
		_ = discord.RespondError(s, i, "Could not create the voting.")
		return
	}

	msg, err := s.ChannelMessageSendComplex(guild.VotingChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{discord.VotingEmbed(voting, discord.InteractionUserID(i))},
		Components: discord.BallotButtons(voting.ID),
	})
	if err != nil {
		logx.Error("proposals", "posting voting %s: %v", voting.ID, err)
		_ = discord.RespondError(s, i, "Could not post the voting message.")
		return
	}
	if err := c.store.UpdateVoting(ctx, voting.ID, map[string]interface{}{"message_id": msg.ID}); err != nil {
		logx.Warn("proposals", "linking message for %s: %v", voting.ID, err)
	}

	c.audit(ctx, i, "propose", map[string]interface{}{
		"voting": voting.ID, "kind": string(kind), "title": title,
	})
	logx.Info("proposals", "opened %s voting %s in guild %s", kind, voting.ID, guild.ID)
	_ = discord.RespondSuccess(s, i,
		fmt.Sprintf("%s put to a vote in <#%s>. It closes %s.",
			cfg.Name, guild.VotingChannelID, fmt.Sprintf("<t:%d:R>", end.Unix())))
}

// OpenDecree opens a decree confirmation vote on behalf of the chancellor.
func (c *Component) OpenDecree(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate,
	guild *types.Guild, title, description, proposerID string) {
	c.openProposal(ctx, s, i, guild, gov.KindDecree, title, description, proposerID)
}

// HandleBallot records a For/Against press on a proposal message.
func (c *Component) HandleBallot(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate,
	votingID string, stance bool) {

	voting, err := c.store.Voting(ctx, votingID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "This voting no longer exists.")
		return
	}
	if err != nil {
		logx.Error("proposals", "voting lookup %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}
	if voting.Status != string(gov.StatusVoting) || time.Now().UTC().After(voting.VotingEnd) {
		_ = discord.RespondError(s, i, "This voting is closed.")
		return
	}

	guildID := store.GuildIDFromCouncil(voting.CouncilID)
	voter, err := c.store.Councillor(ctx, discord.InteractionUserID(i), guildID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "Only sitting councillors can vote on proposals.")
		return
	}
	if err != nil {
		logx.Error("proposals", "councillor lookup: %v", err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}

	var changed bool
	err = c.locker.WithLock("vote:"+votingID+":"+voter.ID, 10*time.Second, func() error {
		var castErr error
		changed, castErr = c.store.CastBallot(ctx, votingID, voter.ID, stance)
		return castErr
	})
	if errors.Is(err, data.ErrLockNotAcquired) {
		_ = discord.RespondError(s, i, "Your previous click is still being processed.")
		return
	}
	if err != nil {
		logx.Error("proposals", "casting ballot on %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Could not record your ballot.")
		return
	}

	word := "For"
	if !stance {
		word = "Against"
	}
	c.audit(ctx, i, "vote", map[string]interface{}{
		"voting": votingID, "stance": word, "changed": changed,
	})
	if changed {
		_ = discord.RespondSuccess(s, i, fmt.Sprintf("Your ballot was changed to **%s**.", word))
		return
	}
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("Your ballot was recorded as **%s**.", word))
}

// HandleVeto cancels an open voting. President only.
func (c *Component) HandleVeto(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild, err := c.store.Guild(ctx, i.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "This server is not set up yet.")
		return
	}
	if err != nil {
		logx.Error("proposals", "guild lookup for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}
	canVeto := discord.MemberHasRole(i.Member, guild.PresidentRoleID) ||
		discord.MemberHasRole(i.Member, guild.VicePresidentRoleID) ||
		discord.MemberHasRole(i.Member, guild.ChancellorRoleID)
	if !canVeto {
		_ = discord.RespondError(s, i, "Only the president, vice president or chancellor can cast a veto.")
		return
	}

	opts := discord.OptionMap(i)
	votingID := opts["voting_id"].StringValue()
	reason := discord.Sanitize(opts["reason"].StringValue())

	voting, err := c.store.Voting(ctx, votingID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "No voting with that id exists.")
		return
	}
	if err != nil {
		logx.Error("proposals", "voting lookup %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}
	if voting.CouncilID != store.CouncilID(i.GuildID) {
		_ = discord.RespondError(s, i, "That voting belongs to another server.")
		return
	}

	from, err := gov.ParseStatus(voting.Status)
	if err != nil || from.Terminal() {
		_ = discord.RespondError(s, i, "That voting is already closed.")
		return
	}
	if err := c.store.TransitionVoting(ctx, votingID, from, gov.StatusCancelled); err != nil {
		if errors.Is(err, store.ErrConflict) {
			_ = discord.RespondError(s, i, "That voting was just closed by someone else.")
			return
		}
		logx.Error("proposals", "vetoing %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Could not veto the voting.")
		return
	}

	if guild.AnnouncementChannelID != "" {
		_, err := s.ChannelMessageSendEmbed(guild.AnnouncementChannelID,
			discord.NoticeEmbed("🛑 Veto",
				fmt.Sprintf("The president vetoed **%s**.\nReason: %s", voting.Title, reason)))
		if err != nil {
			logx.Warn("proposals", "announcing veto of %s: %v", votingID, err)
		}
	}

	c.audit(ctx, i, "veto", map[string]interface{}{"voting": votingID, "reason": reason})
	logx.Info("proposals", "voting %s vetoed in guild %s", votingID, i.GuildID)
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("**%s** has been vetoed.", voting.Title))
}

func (c *Component) audit(ctx context.Context, i *discordgo.InteractionCreate, action string, details map[string]interface{}) {
	err := c.store.Audit(ctx, c.rdb, types.AuditLog{
		GuildID:   i.GuildID,
		Type:      "vote",
		Action:    action,
		DiscordID: discord.InteractionUserID(i),
		Details:   data.MarshalDetails(details),
	})
	if err != nil {
		logx.Warn("proposals", "audit write failed: %v", err)
	}
}
