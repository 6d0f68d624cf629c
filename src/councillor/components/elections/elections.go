// Package elections implements the presidential election commands and the
// registration and ballot buttons.
package elections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/councilbot/councillor/src/councillor/config"
	"github.com/councilbot/councillor/src/councillor/discord"
	"github.com/councilbot/councillor/src/councillor/resolver"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/logx"
	"github.com/councilbot/councillor/src/shared/types"
)

const defaultRegistrationHours = 24

type Component struct {
	store    *store.Store
	rdb      *redis.Client
	locker   *data.Locker
	resolver *resolver.Resolver
	cfg      config.Config
}

func New(s *store.Store, rdb *redis.Client, locker *data.Locker, r *resolver.Resolver, cfg config.Config) *Component {
	return &Component{store: s, rdb: rdb, locker: locker, resolver: r, cfg: cfg}
}

func (c *Component) presidentOnly(s *discordgo.Session, i *discordgo.InteractionCreate, guild *types.Guild) bool {
	if discord.MemberHasRole(i.Member, guild.PresidentRoleID) ||
		discord.MemberHasRole(i.Member, guild.VicePresidentRoleID) {
		return true
	}
	_ = discord.RespondError(s, i, "Only the president or vice president can run elections.")
	return false
}

func (c *Component) guild(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *types.Guild {
	guild, err := c.store.Guild(ctx, i.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "This server is not set up yet.")
		return nil
	}
	if err != nil {
		logx.Error("elections", "guild lookup for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return nil
	}
	return guild
}

func (c *Component) HandleAnnounceElection(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild := c.guild(ctx, s, i)
	if guild == nil || !c.presidentOnly(s, i, guild) {
		return
	}
	if guild.VotingChannelID == "" {
		_ = discord.RespondError(s, i, "No voting channel is bound. An administrator must run /set_channel.")
		return
	}

	opts := discord.OptionMap(i)
	registrationHours := defaultRegistrationHours
	if opt, ok := opts["registration_hours"]; ok && opt.IntValue() > 0 {
		registrationHours = int(opt.IntValue())
	}
	votingDays := 0
	if opt, ok := opts["voting_days"]; ok && opt.IntValue() > 0 {
		votingDays = int(opt.IntValue())
	}
	channelID := guild.VotingChannelID
	if opt, ok := opts["channel"]; ok {
		channelID = opt.ChannelValue(s).ID
	}
	pingEveryone := false
	if opt, ok := opts["ping_everyone"]; ok {
		pingEveryone = opt.BoolValue()
	}

	if err := c.store.BeginElection(ctx, i.GuildID); err != nil {
		if errors.Is(err, store.ErrElectionInProgress) {
			_ = discord.RespondError(s, i, "An election is already in progress.")
			return
		}
		logx.Error("elections", "begin election for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not open the election.")
		return
	}

	registrationEnd := time.Now().UTC().Add(time.Duration(registrationHours) * time.Hour)
	voting := &types.Voting{
		ID:        uuid.NewString(),
		Kind:      string(gov.KindElection),
		Status:    string(gov.StatusPending),
		Title:     "Council election",
		Description: fmt.Sprintf(
			"Candidate and voter registration is open until %s.\n"+
				"Members of this server for at least %d days may run and vote.",
			fmt.Sprintf("<t:%d:F>", registrationEnd.Unix()), guild.DaysRequirement),
		CouncilID:  store.CouncilID(i.GuildID),
		ProposerID: discord.InteractionUserID(i),
		VotingEnd:  registrationEnd,
		VotingDays: votingDays,
	}
	if err := c.store.CreateVoting(ctx, voting); err != nil {
		logx.Error("elections", "creating election voting: %v", err)
		_ = c.store.EndElection(ctx, i.GuildID)
		_ = discord.RespondError(s, i, "Could not open the election.")
		return
	}

	send := &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{discord.ElectionEmbed(voting)},
		Components: discord.RegistrationButtons(voting.ID),
	}
	if pingEveryone {
		send.Content = pingContent(guild)
	}
	msg, err := s.ChannelMessageSendComplex(channelID, send)
	if err != nil {
		logx.Error("elections", "posting election %s: %v", voting.ID, err)
		_ = discord.RespondError(s, i, "Could not post the election announcement.")
		return
	}
	if err := c.store.UpdateVoting(ctx, voting.ID, map[string]interface{}{"message_id": msg.ID}); err != nil {
		logx.Warn("elections", "linking message for %s: %v", voting.ID, err)
	}

	c.audit(ctx, i, "announce_election", map[string]interface{}{"voting": voting.ID})
	logx.Info("elections", "opened council election %s in guild %s", voting.ID, i.GuildID)
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("Election announced in <#%s>.", channelID))
}

func (c *Component) HandleAnnounceChancellorElection(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild := c.guild(ctx, s, i)
	if guild == nil || !c.presidentOnly(s, i, guild) {
		return
	}
	if guild.VotingChannelID == "" {
		_ = discord.RespondError(s, i, "No voting channel is bound. An administrator must run /set_channel.")
		return
	}

	councillors, err := c.store.Councillors(ctx, i.GuildID, true)
	if err != nil {
		logx.Error("elections", "listing councillors: %v", err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}
	if len(councillors) == 0 {
		_ = discord.RespondError(s, i, "No council is seated; hold a council election first.")
		return
	}

	votingDays := 0
	if opt, ok := discord.OptionMap(i)["voting_days"]; ok && opt.IntValue() > 0 {
		votingDays = int(opt.IntValue())
	}

	if err := c.store.BeginElection(ctx, i.GuildID); err != nil {
		if errors.Is(err, store.ErrElectionInProgress) {
			_ = discord.RespondError(s, i, "An election is already in progress.")
			return
		}
		logx.Error("elections", "begin chancellor election for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not open the election.")
		return
	}

	registrationEnd := time.Now().UTC().Add(defaultRegistrationHours * time.Hour)
	voting := &types.Voting{
		ID:     uuid.NewString(),
		Kind:   string(gov.KindChancellorElection),
		Status: string(gov.StatusPending),
		Title:  "Chancellor election",
		Description: fmt.Sprintf(
			"Sitting councillors may register as candidates or voters until %s.",
			fmt.Sprintf("<t:%d:F>", registrationEnd.Unix())),
		CouncilID:  store.CouncilID(i.GuildID),
		ProposerID: discord.InteractionUserID(i),
		VotingEnd:  registrationEnd,
		VotingDays: votingDays,
	}
	if err := c.store.CreateVoting(ctx, voting); err != nil {
		logx.Error("elections", "creating chancellor election: %v", err)
		_ = c.store.EndElection(ctx, i.GuildID)
		_ = discord.RespondError(s, i, "Could not open the election.")
		return
	}

	msg, err := s.ChannelMessageSendComplex(guild.VotingChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{discord.ElectionEmbed(voting)},
		Components: discord.RegistrationButtons(voting.ID),
	})
	if err != nil {
		logx.Error("elections", "posting chancellor election %s: %v", voting.ID, err)
		_ = discord.RespondError(s, i, "Could not post the election announcement.")
		return
	}
	if err := c.store.UpdateVoting(ctx, voting.ID, map[string]interface{}{"message_id": msg.ID}); err != nil {
		logx.Warn("elections", "linking message for %s: %v", voting.ID, err)
	}

	c.audit(ctx, i, "announce_chancellor_election", map[string]interface{}{"voting": voting.ID})
	logx.Info("elections", "opened chancellor election %s in guild %s", voting.ID, i.GuildID)
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("Chancellor election announced in <#%s>.", guild.VotingChannelID))
}

// HandleStartVoting closes registration on whichever election is pending and
// opens the ballot.
func (c *Component) HandleStartVoting(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild := c.guild(ctx, s, i)
	if guild == nil || !c.presidentOnly(s, i, guild) {
		return
	}

	voting := c.pendingElection(ctx, s, i)
	if voting == nil {
		return
	}
	kind, _ := gov.ParseKind(voting.Kind)

	candidates, err := c.store.Candidates(ctx, voting.ID)
	if err != nil {
		logx.Error("elections", "listing candidates for %s: %v", voting.ID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}
	if len(candidates) == 0 {
		_ = discord.RespondError(s, i, "No candidates registered; the ballot cannot open.")
		return
	}
	if len(candidates) > c.cfg.MaxCandidates {
		candidates = candidates[:c.cfg.MaxCandidates]
	}

	days := voting.VotingDays
	if days <= 0 {
		days = kind.Config().VotingDays
	}
	now := time.Now().UTC()
	end := now.Add(time.Duration(days) * 24 * time.Hour)

	if err := c.store.TransitionVoting(ctx, voting.ID, gov.StatusPending, gov.StatusVoting); err != nil {
		if errors.Is(err, store.ErrConflict) {
			_ = discord.RespondError(s, i, "The ballot was just opened by someone else.")
			return
		}
		logx.Error("elections", "starting ballot for %s: %v", voting.ID, err)
		_ = discord.RespondError(s, i, "Could not open the ballot.")
		return
	}
	if err := c.store.UpdateVoting(ctx, voting.ID, map[string]interface{}{
		"voting_start": now, "voting_end": end,
	}); err != nil {
		logx.Error("elections", "setting window for %s: %v", voting.ID, err)
	}

	channelID := guild.VotingChannelID
	if opt, ok := discord.OptionMap(i)["channel"]; ok {
		channelID = opt.ChannelValue(s).ID
	}

	ballot := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{discord.NoticeEmbed(
			fmt.Sprintf("%s %s: the ballot is open", kind.Config().Emoji, voting.Title),
			fmt.Sprintf("Registered voters, pick your candidate below. The ballot closes <t:%d:R>.", end.Unix()))},
		Components: discord.CandidateButtons(voting.ID, candidates),
	}
	if _, err := s.ChannelMessageSendComplex(channelID, ballot); err != nil {
		logx.Error("elections", "posting ballot for %s: %v", voting.ID, err)
		_ = discord.RespondError(s, i, "The ballot opened but the message could not be posted.")
		return
	}

	c.audit(ctx, i, "start_voting", map[string]interface{}{
		"voting": voting.ID, "candidates": len(candidates),
	})
	logx.Info("elections", "ballot open for %s in guild %s", voting.ID, i.GuildID)
	_ = discord.RespondSuccess(s, i, fmt.Sprintf("The ballot is open in <#%s>.", channelID))
}

func (c *Component) HandleCloseElection(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	c.closeElection(ctx, s, i, gov.KindElection)
}

func (c *Component) HandleCloseChancellorElection(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	c.closeElection(ctx, s, i, gov.KindChancellorElection)
}

// closeElection pulls the voting window to now and hands the voting to the
// resolver, so command-driven and scheduled closure share one code path.
func (c *Component) closeElection(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, kind gov.Kind) {
	guild := c.guild(ctx, s, i)
	if guild == nil || !c.presidentOnly(s, i, guild) {
		return
	}

	voting, err := c.store.OpenVoting(ctx, i.GuildID, kind)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "No such election is open.")
		return
	}
	if err != nil {
		logx.Error("elections", "election lookup for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return
	}
	if voting.Status != string(gov.StatusVoting) {
		_ = discord.RespondError(s, i, "The ballot has not opened yet; use /start_voting first.")
		return
	}

	now := time.Now().UTC()
	if err := c.store.UpdateVoting(ctx, voting.ID, map[string]interface{}{"voting_end": now}); err != nil {
		logx.Error("elections", "closing %s: %v", voting.ID, err)
		_ = discord.RespondError(s, i, "Could not close the election.")
		return
	}

	c.audit(ctx, i, "close_election", map[string]interface{}{"voting": voting.ID})
	_ = discord.RespondSuccess(s, i, "The election is closed; results follow shortly.")

	c.resolver.ResolveDue(ctx, now)
}

// pingContent prefers the citizen role over @everyone when one is bound.
func pingContent(guild *types.Guild) string {
	if guild.CitizenRoleID != "" {
		return "<@&" + guild.CitizenRoleID + ">"
	}
	return "@everyone"
}

func (c *Component) pendingElection(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *types.Voting {
	for _, kind := range []gov.Kind{gov.KindElection, gov.KindChancellorElection} {
		voting, err := c.store.OpenVoting(ctx, i.GuildID, kind)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			logx.Error("elections", "election lookup for %s: %v", i.GuildID, err)
			_ = discord.RespondError(s, i, "Something went wrong, try again later.")
			return nil
		}
		if voting.Status == string(gov.StatusPending) {
			return voting
		}
	}
	_ = discord.RespondError(s, i, "No election is in its registration phase.")
	return nil
}

// HandleRegisterCandidate handles a press on the "Run as candidate" button.
func (c *Component) HandleRegisterCandidate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, votingID string) {
	voting, guild := c.buttonContext(ctx, s, i, votingID)
	if voting == nil {
		return
	}
	if voting.Status != string(gov.StatusPending) {
		_ = discord.RespondError(s, i, "Candidate registration is closed.")
		return
	}

	userID := discord.InteractionUserID(i)
	kind, _ := gov.ParseKind(voting.Kind)
	if kind == gov.KindChancellorElection {
		if _, err := c.store.Councillor(ctx, userID, guild.ID); errors.Is(err, store.ErrNotFound) {
			_ = discord.RespondError(s, i, "Only sitting councillors can run for chancellor.")
			return
		}
	} else if !c.meetsDaysRequirement(i, guild) {
		_ = discord.RespondError(s, i,
			fmt.Sprintf("You must be a member of this server for at least %d days to run.", guild.DaysRequirement))
		return
	}

	err := c.locker.WithLock("election:"+voting.CouncilID, 10*time.Second, func() error {
		_, registerErr := c.store.RegisterCandidate(ctx, votingID, userID, discord.InteractionUserName(i))
		return registerErr
	})
	if errors.Is(err, store.ErrAlreadyRegistered) {
		_ = discord.RespondError(s, i, "You are already registered as a candidate.")
		return
	}
	if err != nil {
		logx.Error("elections", "registering candidate on %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Could not register your candidacy.")
		return
	}

	c.audit(ctx, i, "register_candidate", map[string]interface{}{"voting": votingID})
	_ = discord.RespondSuccess(s, i, "You are registered as a candidate. Good luck!")
}

// HandleRegisterVoter handles a press on the "Register to vote" button.
// Registration stays open while the ballot runs.
func (c *Component) HandleRegisterVoter(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, votingID string) {
	voting, guild := c.buttonContext(ctx, s, i, votingID)
	if voting == nil {
		return
	}
	status, _ := gov.ParseStatus(voting.Status)
	if status.Terminal() {
		_ = discord.RespondError(s, i, "This election is closed.")
		return
	}

	userID := discord.InteractionUserID(i)
	kind, _ := gov.ParseKind(voting.Kind)
	if kind == gov.KindChancellorElection {
		if _, err := c.store.Councillor(ctx, userID, guild.ID); errors.Is(err, store.ErrNotFound) {
			_ = discord.RespondError(s, i, "Only sitting councillors vote for chancellor.")
			return
		}
	} else if !c.meetsDaysRequirement(i, guild) {
		_ = discord.RespondError(s, i,
			fmt.Sprintf("You must be a member of this server for at least %d days to vote.", guild.DaysRequirement))
		return
	}

	err := c.locker.WithLock("election:"+voting.CouncilID, 10*time.Second, func() error {
		_, registerErr := c.store.RegisterVoter(ctx, votingID, userID, discord.InteractionUserName(i))
		return registerErr
	})
	if errors.Is(err, store.ErrAlreadyRegistered) {
		_ = discord.RespondError(s, i, "You are already registered to vote.")
		return
	}
	if err != nil {
		logx.Error("elections", "registering voter on %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Could not register you to vote.")
		return
	}

	c.audit(ctx, i, "register_voter", map[string]interface{}{"voting": votingID})
	_ = discord.RespondSuccess(s, i, "You are registered to vote.")
}

// HandleElect handles a press on a candidate button.
func (c *Component) HandleElect(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, votingID, candidateID string) {
	voting, _ := c.buttonContext(ctx, s, i, votingID)
	if voting == nil {
		return
	}
	if voting.Status != string(gov.StatusVoting) || time.Now().UTC().After(voting.VotingEnd) {
		_ = discord.RespondError(s, i, "The ballot is not open.")
		return
	}

	userID := discord.InteractionUserID(i)
	err := c.locker.WithLock("vote:"+votingID+":"+userID, 10*time.Second, func() error {
		return c.store.CastElectionBallot(ctx, votingID, userID, candidateID)
	})
	switch {
	case errors.Is(err, store.ErrAlreadyVoted):
		_ = discord.RespondError(s, i, "You have already voted in this election.")
		return
	case errors.Is(err, store.ErrNotFound):
		_ = discord.RespondError(s, i, "You are not registered to vote in this election.")
		return
	case errors.Is(err, data.ErrLockNotAcquired):
		_ = discord.RespondError(s, i, "Your previous click is still being processed.")
		return
	case err != nil:
		logx.Error("elections", "casting election ballot on %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Could not record your ballot.")
		return
	}

	c.audit(ctx, i, "elect", map[string]interface{}{"voting": votingID})
	_ = discord.RespondSuccess(s, i, "Your ballot was recorded.")
}

func (c *Component) buttonContext(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, votingID string) (*types.Voting, *types.Guild) {
	voting, err := c.store.Voting(ctx, votingID)
	if errors.Is(err, store.ErrNotFound) {
		_ = discord.RespondError(s, i, "This election no longer exists.")
		return nil, nil
	}
	if err != nil {
		logx.Error("elections", "voting lookup %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return nil, nil
	}
	guild, err := c.store.Guild(ctx, store.GuildIDFromCouncil(voting.CouncilID))
	if err != nil {
		logx.Error("elections", "guild lookup for %s: %v", voting.CouncilID, err)
		_ = discord.RespondError(s, i, "Something went wrong, try again later.")
		return nil, nil
	}
	return voting, guild
}

func (c *Component) meetsDaysRequirement(i *discordgo.InteractionCreate, guild *types.Guild) bool {
	if i.Member == nil || i.Member.JoinedAt.IsZero() {
		return false
	}
	membership := time.Since(i.Member.JoinedAt)
	return membership >= time.Duration(guild.DaysRequirement)*24*time.Hour
}

func (c *Component) audit(ctx context.Context, i *discordgo.InteractionCreate, action string, details map[string]interface{}) {
	err := c.store.Audit(ctx, c.rdb, types.AuditLog{
		GuildID:   i.GuildID,
		Type:      "election",
		Action:    action,
		DiscordID: discord.InteractionUserID(i),
		Details:   data.MarshalDetails(details),
	})
	if err != nil {
		logx.Warn("elections", "audit write failed: %v", err)
	}
}
