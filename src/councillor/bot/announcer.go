package bot

import (
	"context"
	"fmt"

	"github.com/councilbot/councillor/src/councillor/discord"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/types"
)

// The bot is the resolver's Announcer: it posts result embeds and applies the
// role changes that follow a resolution.

func (b *Bot) announceChannel(ctx context.Context, councilID string) (*types.Guild, string, error) {
	guild, err := b.store.Guild(ctx, store.GuildIDFromCouncil(councilID))
	if err != nil {
		return nil, "", err
	}
	channelID := guild.AnnouncementChannelID
	if channelID == "" {
		channelID = guild.VotingChannelID
	}
	if channelID == "" {
		return nil, "", fmt.Errorf("guild %s has no channel bound", guild.ID)
	}
	return guild, channelID, nil
}

func (b *Bot) ProposalResolved(ctx context.Context, voting *types.Voting, yes, no int, passed bool) error {
	guild, err := b.store.Guild(ctx, store.GuildIDFromCouncil(voting.CouncilID))
	if err != nil {
		return err
	}
	channelID := guild.VotingChannelID
	if channelID == "" {
		channelID = guild.AnnouncementChannelID
	}
	if channelID == "" {
		return fmt.Errorf("guild %s has no channel bound", guild.ID)
	}
	_, err = b.session.ChannelMessageSendEmbed(channelID, discord.ResultEmbed(voting, yes, no, passed))
	return err
}

func (b *Bot) CouncilElected(ctx context.Context, voting *types.Voting, seated []types.Councillor, outgoingDiscordIDs []string) error {
	guild, channelID, err := b.announceChannel(ctx, voting.CouncilID)
	if err != nil {
		return err
	}

	won := make(map[string]bool, len(seated))
	incoming := make([]string, len(seated))
	for i, c := range seated {
		won[c.DiscordID] = true
		incoming[i] = c.DiscordID
	}
	// Re-elected members keep the role; only true leavers lose it.
	var outgoing []string
	for _, id := range outgoingDiscordIDs {
		if !won[id] {
			outgoing = append(outgoing, id)
		}
	}
	b.syncer.RotateCouncil(guild, outgoing, incoming)

	_, err = b.session.ChannelMessageSendEmbed(channelID, discord.CouncilElectedEmbed(seated))
	return err
}

func (b *Bot) ElectionFailed(ctx context.Context, voting *types.Voting, reason string) error {
	_, channelID, err := b.announceChannel(ctx, voting.CouncilID)
	if err != nil {
		return err
	}
	_, err = b.session.ChannelMessageSendEmbed(channelID,
		discord.NoticeEmbed("Election failed",
			fmt.Sprintf("**%s** resolved without a result: %s.", voting.Title, reason)))
	return err
}

func (b *Bot) ChancellorElected(ctx context.Context, voting *types.Voting, chancellor *types.Councillor, previousDiscordID string) error {
	guild, channelID, err := b.announceChannel(ctx, voting.CouncilID)
	if err != nil {
		return err
	}

	b.syncer.HandChancellery(guild, previousDiscordID, chancellor.DiscordID)

	_, err = b.session.ChannelMessageSendEmbed(channelID, discord.ChancellorElectedEmbed(chancellor))
	return err
}
