package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/logx"
)

const (
	CommandSetup          = "setup"
	CommandShowConfig     = "show_config"
	CommandSetRole        = "set_role"
	CommandSetChannel     = "set_channel"
	CommandSetRequirement = "set_requirement"
	CommandToggleBot      = "toggle_bot"

	CommandCouncil      = "council"
	CommandVotingStatus = "voting_status"
	CommandHelp         = "help"

	CommandPropose = "propose"
	CommandVeto    = "veto"

	CommandAnnounceElection           = "announce_election"
	CommandStartVoting                = "start_voting"
	CommandCloseElection              = "close_election"
	CommandAnnounceChancellorElection = "announce_chancellor_election"
	CommandCloseChancellorElection    = "close_chancellor_election"

	CommandMinistry    = "ministry"
	CommandAnnounce    = "announce"
	CommandDecree      = "decree"
	CommandCallMeeting = "call_meeting"
)

func proposalKindChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(gov.ProposalKinds))
	for _, kind := range gov.ProposalKinds {
		cfg := kind.Config()
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  cfg.Name,
			Value: string(kind),
		})
	}
	return choices
}

var roleSlotChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "Councillor", Value: "councillor"},
	{Name: "Chancellor", Value: "chancellor"},
	{Name: "Minister", Value: "minister"},
	{Name: "President", Value: "president"},
	{Name: "Vice President", Value: "vice_president"},
	{Name: "Judiciary", Value: "judiciary"},
	{Name: "Citizen", Value: "citizen"},
}

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandSetup: {
		Name:        CommandSetup,
		Description: "Provision this server with a council (admin only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "description",
				Description: "A short description of this server's government",
			},
		},
	},
	CommandShowConfig: {
		Name:        CommandShowConfig,
		Description: "Show the current bot configuration (admin only)",
	},
	CommandSetRole: {
		Name:        CommandSetRole,
		Description: "Bind a government position to a Discord role (admin only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "position",
				Description: "The government position",
				Required:    true,
				Choices:     roleSlotChoices,
			},
			{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "role",
				Description: "The Discord role",
				Required:    true,
			},
		},
	},
	CommandSetChannel: {
		Name:        CommandSetChannel,
		Description: "Bind a bot channel (admin only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "purpose",
				Description: "What the channel is for",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Voting", Value: "voting"},
					{Name: "Announcements", Value: "announcement"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "The channel",
				Required:    true,
			},
		},
	},
	CommandSetRequirement: {
		Name:        CommandSetRequirement,
		Description: "Change a numeric setting (admin only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "setting",
				Description: "Which setting to change",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Membership days requirement", Value: "days_requirement"},
					{Name: "Max councillors", Value: "max_councillors"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "value",
				Description: "The new value",
				Required:    true,
			},
		},
	},
	CommandToggleBot: {
		Name:        CommandToggleBot,
		Description: "Enable or disable the bot on this server (admin only)",
	},
	CommandCouncil: {
		Name:        CommandCouncil,
		Description: "Show the sitting council",
	},
	CommandVotingStatus: {
		Name:        CommandVotingStatus,
		Description: "Show open votings, or the details of one voting",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "voting_id",
				Description: "A specific voting id",
			},
		},
	},
	CommandHelp: {
		Name:        CommandHelp,
		Description: "Explain the commands and how voting works",
	},
	CommandPropose: {
		Name:        CommandPropose,
		Description: "Put a proposal before the council (councillors only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "kind",
				Description: "The kind of proposal",
				Required:    true,
				Choices:     proposalKindChoices(),
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "A short title",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "description",
				Description: "The full text of the proposal",
				Required:    true,
			},
		},
	},
	CommandVeto: {
		Name:        CommandVeto,
		Description: "Veto an open voting (president, vice president or chancellor)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "voting_id",
				Description: "The id of the voting to veto",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "Why the veto is cast",
				Required:    true,
			},
		},
	},
	CommandAnnounceElection: {
		Name:        CommandAnnounceElection,
		Description: "Open candidate and voter registration for a council election (president only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "registration_hours",
				Description: "How long registration stays open (default 24)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "voting_days",
				Description: "How long the ballot stays open once started (default 3)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "Where to post the announcement (default: voting channel)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "ping_everyone",
				Description: "Ping @everyone with the announcement",
			},
		},
	},
	CommandStartVoting: {
		Name:        CommandStartVoting,
		Description: "Close registration and open the ballot (president only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "Where to post the ballot (default: voting channel)",
			},
		},
	},
	CommandCloseElection: {
		Name:        CommandCloseElection,
		Description: "Close the council election and seat the winners (president only)",
	},
	CommandAnnounceChancellorElection: {
		Name:        CommandAnnounceChancellorElection,
		Description: "Open a chancellor election among the councillors (president only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "voting_days",
				Description: "How long the ballot stays open (default 2)",
			},
		},
	},
	CommandCloseChancellorElection: {
		Name:        CommandCloseChancellorElection,
		Description: "Close the chancellor election and crown the winner (president only)",
	},
	CommandMinistry: {
		Name:        CommandMinistry,
		Description: "Manage ministries (chancellor only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a ministry",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "The ministry name",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "description",
						Description: "What the ministry is responsible for",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "assign",
				Description: "Appoint a minister",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "The ministry name",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "minister",
						Description: "The member to appoint",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "deputy",
						Description: "An optional deputy",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "dissolve",
				Description: "Dissolve a ministry",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "The ministry name",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List the active ministries",
			},
		},
	},
	CommandAnnounce: {
		Name:        CommandAnnounce,
		Description: "Post an official announcement (chancellor only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "The announcement title",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "The announcement text",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "ping_everyone",
				Description: "Ping @everyone with the announcement",
			},
		},
	},
	CommandDecree: {
		Name:        CommandDecree,
		Description: "Issue a decree, put to a confirmation vote (chancellor only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "A short title",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "text",
				Description: "The decree text",
				Required:    true,
			},
		},
	},
	CommandCallMeeting: {
		Name:        CommandCallMeeting,
		Description: "Summon the council to a meeting (president or vice president)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "topic",
				Description: "What the meeting is about",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "time",
				Description: "When the meeting takes place",
				Required:    true,
			},
		},
	},
}

var defaultCommandOrder = []string{
	CommandSetup,
	CommandShowConfig,
	CommandSetRole,
	CommandSetChannel,
	CommandSetRequirement,
	CommandToggleBot,
	CommandCouncil,
	CommandVotingStatus,
	CommandHelp,
	CommandPropose,
	CommandVeto,
	CommandAnnounceElection,
	CommandStartVoting,
	CommandCloseElection,
	CommandAnnounceChancellorElection,
	CommandCloseChancellorElection,
	CommandMinistry,
	CommandAnnounce,
	CommandDecree,
	CommandCallMeeting,
}

// RegisterSlashCommands registers the requested slash commands for a guild.
// When no command names are provided, all known commands are registered.
func RegisterSlashCommands(s *discordgo.Session, guildID string, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to register slash commands")
	}

	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition, ok := commandDefinitions[name]
		if !ok {
			logx.Warn("discord", "unknown slash command %q", name)
			continue
		}

		_, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, definition)
		if err != nil {
			if isDuplicateCommandError(err) {
				logx.Info("discord", "slash command %q already registered", name)
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			logx.Error("discord", "failed to register command %q: %v", name, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}

	return nil
}

// DeleteSlashCommands removes all registered slash commands for a guild.
func DeleteSlashCommands(s *discordgo.Session, guildID string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to delete slash commands")
	}

	commands, err := s.ApplicationCommands(s.State.User.ID, guildID)
	if err != nil {
		return err
	}

	for _, cmd := range commands {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			return err
		}
	}

	return nil
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			msg := strings.ToLower(restErr.Message.Message)
			if strings.Contains(msg, "already exists") {
				return true
			}
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "50035") && strings.Contains(msg, "already exists")
}
