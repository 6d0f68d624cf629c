// Package bot wires the Discord session to the command components and runs
// the interaction dispatch.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/councilbot/councillor/src/councillor/components/admin"
	"github.com/councilbot/councillor/src/councillor/components/council"
	"github.com/councilbot/councillor/src/councillor/components/elections"
	"github.com/councilbot/councillor/src/councillor/components/executive"
	"github.com/councilbot/councillor/src/councillor/components/proposals"
	"github.com/councilbot/councillor/src/councillor/config"
	"github.com/councilbot/councillor/src/councillor/discord"
	"github.com/councilbot/councillor/src/councillor/resolver"
	"github.com/councilbot/councillor/src/councillor/rolesync"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/logx"
)

type Bot struct {
	session *discordgo.Session
	db      *gorm.DB
	rdb     *redis.Client
	store   *store.Store
	locker  *data.Locker
	syncer  *rolesync.Syncer
	cfg     config.Config

	resolver *resolver.Resolver
	limiter  *userLimiter

	admin     *admin.Component
	council   *council.Component
	proposals *proposals.Component
	elections *elections.Component
	executive *executive.Component
}

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages

	s := store.New(db)
	locker := data.NewLocker(rdb)

	b := &Bot{
		session: session,
		db:      db,
		rdb:     rdb,
		store:   s,
		locker:  locker,
		syncer:  rolesync.New(session),
		cfg:     cfg,
		limiter: newUserLimiter(3*time.Second, 2),
	}

	b.resolver = resolver.New(s, rdb, locker, b, cfg)
	b.admin = admin.New(s, rdb, cfg)
	b.council = council.New(s)
	b.proposals = proposals.New(s, rdb, locker)
	b.elections = elections.New(s, rdb, locker, b.resolver, cfg)
	b.executive = executive.New(s, rdb, b.syncer, b.proposals)

	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onInteractionCreate)

	return b, nil
}

// Resolver exposes the resolution job so main can run it alongside the bot.
func (b *Bot) Resolver() *resolver.Resolver {
	return b.resolver
}

func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return err
	}
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.limiter.sweep()
			}
		}
	}()
	return nil
}

func (b *Bot) Stop() {
	if err := b.session.Close(); err != nil {
		logx.Warn("bot", "closing session: %v", err)
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logx.Success("bot", "logged in as %s#%s, serving %d guild(s)",
		r.User.Username, r.User.Discriminator, len(r.Guilds))
}

// onGuildCreate fires on startup for every guild and whenever the bot joins
// a new one. Slash commands are per guild, so register them here.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if err := discord.RegisterSlashCommands(s, g.ID); err != nil {
		logx.Error("bot", "registering commands for %s: %v", g.ID, err)
		return
	}
	logx.Info("bot", "commands registered for guild %s (%s)", g.Name, g.ID)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.dispatchComponent(ctx, s, i)
	}
}

// enabled reports whether the bot may act on this guild. Admin commands pass
// regardless so a disabled bot can be re-enabled.
func (b *Bot) enabled(ctx context.Context, guildID string) bool {
	guild, err := b.store.Guild(ctx, guildID)
	if errors.Is(err, store.ErrNotFound) {
		return true // not set up yet; let handlers report that themselves
	}
	if err != nil {
		logx.Error("bot", "guild lookup for %s: %v", guildID, err)
		return false
	}
	return guild.Enabled
}

var adminCommands = map[string]bool{
	discord.CommandSetup:          true,
	discord.CommandShowConfig:     true,
	discord.CommandSetRole:        true,
	discord.CommandSetChannel:     true,
	discord.CommandSetRequirement: true,
	discord.CommandToggleBot:      true,
}

func (b *Bot) dispatchCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name

	if !b.limiter.Allow(discord.InteractionUserID(i)) {
		_ = discord.RespondError(s, i, "Slow down a little and try again.")
		return
	}
	if !adminCommands[name] && !b.enabled(ctx, i.GuildID) {
		_ = discord.RespondError(s, i, "The bot is disabled on this server.")
		return
	}

	switch name {
	case discord.CommandSetup:
		b.admin.HandleSetup(ctx, s, i)
	case discord.CommandShowConfig:
		b.admin.HandleShowConfig(ctx, s, i)
	case discord.CommandSetRole:
		b.admin.HandleSetRole(ctx, s, i)
	case discord.CommandSetChannel:
		b.admin.HandleSetChannel(ctx, s, i)
	case discord.CommandSetRequirement:
		b.admin.HandleSetRequirement(ctx, s, i)
	case discord.CommandToggleBot:
		b.admin.HandleToggleBot(ctx, s, i)
	case discord.CommandCouncil:
		b.council.HandleCouncil(ctx, s, i)
	case discord.CommandVotingStatus:
		b.council.HandleVotingStatus(ctx, s, i)
	case discord.CommandHelp:
		b.council.HandleHelp(ctx, s, i)
	case discord.CommandPropose:
		b.proposals.HandlePropose(ctx, s, i)
	case discord.CommandVeto:
		b.proposals.HandleVeto(ctx, s, i)
	case discord.CommandAnnounceElection:
		b.elections.HandleAnnounceElection(ctx, s, i)
	case discord.CommandStartVoting:
		b.elections.HandleStartVoting(ctx, s, i)
	case discord.CommandCloseElection:
		b.elections.HandleCloseElection(ctx, s, i)
	case discord.CommandAnnounceChancellorElection:
		b.elections.HandleAnnounceChancellorElection(ctx, s, i)
	case discord.CommandCloseChancellorElection:
		b.elections.HandleCloseChancellorElection(ctx, s, i)
	case discord.CommandMinistry:
		b.executive.HandleMinistry(ctx, s, i)
	case discord.CommandAnnounce:
		b.executive.HandleAnnounce(ctx, s, i)
	case discord.CommandDecree:
		b.executive.HandleDecree(ctx, s, i)
	case discord.CommandCallMeeting:
		b.executive.HandleCallMeeting(ctx, s, i)
	default:
		logx.Warn("bot", "unknown command %q", name)
	}
}

func (b *Bot) dispatchComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.enabled(ctx, i.GuildID) {
		_ = discord.RespondError(s, i, "The bot is disabled on this server.")
		return
	}

	action, args := discord.SplitCustomID(i.MessageComponentData().CustomID)
	switch {
	case action == discord.ButtonBallotFor && len(args) == 1:
		b.proposals.HandleBallot(ctx, s, i, args[0], true)
	case action == discord.ButtonBallotAgainst && len(args) == 1:
		b.proposals.HandleBallot(ctx, s, i, args[0], false)
	case action == discord.ButtonRegisterCandidate && len(args) == 1:
		b.elections.HandleRegisterCandidate(ctx, s, i, args[0])
	case action == discord.ButtonRegisterVoter && len(args) == 1:
		b.elections.HandleRegisterVoter(ctx, s, i, args[0])
	case action == discord.ButtonElect && len(args) == 2:
		b.elections.HandleElect(ctx, s, i, args[0], args[1])
	default:
		logx.Warn("bot", "unknown component %q", i.MessageComponentData().CustomID)
	}
}
