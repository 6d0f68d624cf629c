// Package council implements the public read-only commands.
package council

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/councilbot/councillor/src/councillor/discord"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/logx"
)

type Component struct {
	store *store.Store
}

func New(s *store.Store) *Component {
	return &Component{store: s}
}

func (c *Component) HandleCouncil(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	councillors, err := c.store.Councillors(ctx, i.GuildID, true)
	if err != nil {
		logx.Error("council", "listing councillors for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not load the council.")
		return
	}
	if len(councillors) == 0 {
		_ = discord.Respond(s, i,
			discord.NoticeEmbed("The Council", "No council is seated. Hold an election first."), false)
		return
	}

	var lines []string
	for _, councillor := range councillors {
		line := fmt.Sprintf("• <@%s>", councillor.DiscordID)
		if councillor.IsChancellor {
			line += " 👑 Chancellor"
		}
		lines = append(lines, line)
	}

	council, err := c.store.Council(ctx, i.GuildID)
	title := "The Council"
	if err == nil && council.ElectionInProgress {
		title += " (election in progress)"
	}

	_ = discord.Respond(s, i, discord.NoticeEmbed(title, strings.Join(lines, "\n")), false)
}

func (c *Component) HandleVotingStatus(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if opt, ok := discord.OptionMap(i)["voting_id"]; ok {
		c.votingDetails(ctx, s, i, opt.StringValue())
		return
	}

	votings, err := c.store.ActiveVotings(ctx, i.GuildID)
	if err != nil {
		logx.Error("council", "listing votings for %s: %v", i.GuildID, err)
		_ = discord.RespondError(s, i, "Could not load the open votings.")
		return
	}
	if len(votings) == 0 {
		_ = discord.Respond(s, i, discord.NoticeEmbed("Open votings", "No voting is currently open."), false)
		return
	}

	var lines []string
	for _, v := range votings {
		kind, err := gov.ParseKind(v.Kind)
		if err != nil {
			continue
		}
		cfg := kind.Config()
		state := "registration"
		if v.Status == string(gov.StatusVoting) {
			state = fmt.Sprintf("closes <t:%d:R>", v.VotingEnd.Unix())
		}
		lines = append(lines, fmt.Sprintf("%s **%s** — %s (`%s`)", cfg.Emoji, v.Title, state, v.ID))
	}

	_ = discord.Respond(s, i, discord.NoticeEmbed("Open votings", strings.Join(lines, "\n")), false)
}

func (c *Component) votingDetails(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, votingID string) {
	voting, err := c.store.Voting(ctx, votingID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && voting.CouncilID != store.CouncilID(i.GuildID)) {
		_ = discord.RespondError(s, i, "No voting with that id exists on this server.")
		return
	}
	if err != nil {
		logx.Error("council", "voting lookup %s: %v", votingID, err)
		_ = discord.RespondError(s, i, "Could not load the voting.")
		return
	}

	kind, err := gov.ParseKind(voting.Kind)
	if err != nil {
		_ = discord.RespondError(s, i, "Could not load the voting.")
		return
	}
	cfg := kind.Config()

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s: %s", cfg.Emoji, cfg.Name, voting.Title),
		Description: voting.Description,
		Color:       cfg.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: voting.Status, Inline: true},
			{Name: "Closes", Value: fmt.Sprintf("<t:%d:R>", voting.VotingEnd.Unix()), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Voting ID: " + voting.ID},
	}

	// Running tallies stay hidden while the vote is open.
	status, parseErr := gov.ParseStatus(voting.Status)
	if parseErr == nil && status.Terminal() && !kind.IsElection() {
		votes, err := c.store.Votes(ctx, voting.ID)
		if err == nil {
			yes, no := gov.TallyBallots(votes)
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name: "Result", Value: fmt.Sprintf("%d for, %d against", yes, no), Inline: true,
			})
		}
	}

	_ = discord.Respond(s, i, embed, false)
}

func (c *Component) HandleHelp(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	_, err := c.store.Guild(ctx, i.GuildID)
	setup := "This server is set up."
	if errors.Is(err, store.ErrNotFound) {
		setup = "This server is not set up yet; an administrator must run /setup."
	}

	var kinds []string
	for _, kind := range gov.ProposalKinds {
		cfg := kind.Config()
		kinds = append(kinds, fmt.Sprintf("%s **%s** — %s (%d day(s), needs more than %.0f%%)",
			cfg.Emoji, cfg.Name, cfg.Description, cfg.VotingDays, cfg.RequiredPercentage*100))
	}

	embed := &discordgo.MessageEmbed{
		Title: "How the council works",
		Description: setup + "\n\n" +
			"Councillors put proposals to a vote with /propose; everyone votes with the " +
			"buttons on the proposal message. Votes resolve automatically once their " +
			"window closes. The president runs elections, the chancellor runs the " +
			"executive.",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Proposal kinds", Value: strings.Join(kinds, "\n")},
			{Name: "Everyone", Value: "/council, /voting_status, /help"},
			{Name: "Councillors", Value: "/propose"},
			{Name: "President", Value: "/announce_election, /start_voting, /close_election, /announce_chancellor_election, /close_chancellor_election, /veto"},
			{Name: "Chancellor", Value: "/ministry, /announce, /decree, /call_meeting"},
		},
	}
	_ = discord.Respond(s, i, embed, true)
}
