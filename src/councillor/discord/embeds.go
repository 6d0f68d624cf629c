package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/microcosm-cc/bluemonday"

	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/types"
)

const (
	colorSuccess = 0x2ECC71
	colorError   = 0xE74C3C
	colorNeutral = 0x95A5A6
)

// Button custom id prefixes. The suffix is the voting id, plus a candidate id
// for elect buttons.
const (
	ButtonRegisterVoter     = "register_voter"
	ButtonRegisterCandidate = "register_candidate"
	ButtonBallotFor         = "ballot_for"
	ButtonBallotAgainst     = "ballot_against"
	ButtonElect             = "elect"
)

var sanitizer = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	return p
}()

// Sanitize strips markup from user-supplied proposal text before it is stored
// and echoed back into embeds.
func Sanitize(text string) string {
	return strings.TrimSpace(sanitizer.Sanitize(text))
}

// SplitCustomID splits a component custom id into its action and arguments.
func SplitCustomID(customID string) (action string, args []string) {
	parts := strings.Split(customID, ":")
	return parts[0], parts[1:]
}

func discordTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

// VotingEmbed renders the message a new proposal is announced with.
func VotingEmbed(voting *types.Voting, proposerDiscordID string) *discordgo.MessageEmbed {
	kind, _ := gov.ParseKind(voting.Kind)
	cfg := kind.Config()

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s: %s", cfg.Emoji, cfg.Name, voting.Title),
		Description: voting.Description,
		Color:       cfg.Color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Voting ID: %s", voting.ID),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Proposed by", Value: fmt.Sprintf("<@%s>", proposerDiscordID), Inline: true},
			{Name: "Closes", Value: discordTimestamp(voting.VotingEnd), Inline: true},
		},
	}
	if cfg.RequiredPercentage > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Required majority",
			Value:  fmt.Sprintf("more than %.0f%%", cfg.RequiredPercentage*100),
			Inline: true,
		})
	}
	return embed
}

// BallotButtons builds the For/Against row attached to a proposal message.
func BallotButtons(votingID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "For",
					Style:    discordgo.SuccessButton,
					CustomID: ButtonBallotFor + ":" + votingID,
				},
				discordgo.Button{
					Label:    "Against",
					Style:    discordgo.DangerButton,
					CustomID: ButtonBallotAgainst + ":" + votingID,
				},
			},
		},
	}
}

// ResultEmbed renders the outcome of a resolved proposal.
func ResultEmbed(voting *types.Voting, yes, no int, passed bool) *discordgo.MessageEmbed {
	kind, _ := gov.ParseKind(voting.Kind)
	cfg := kind.Config()

	verdict := "❌ Failed"
	color := colorError
	if passed {
		verdict = "✅ Passed"
		color = colorSuccess
	}
	total := yes + no
	turnout := "no ballots were cast"
	if total > 0 {
		turnout = fmt.Sprintf("%d for, %d against (%.0f%% in favour)",
			yes, no, float64(yes)/float64(total)*100)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s: %s", cfg.Emoji, cfg.Name, voting.Title),
		Description: fmt.Sprintf("**%s**\n%s", verdict, turnout),
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Voting ID: %s", voting.ID),
		},
	}
}

// ElectionEmbed renders the registration announcement for an election.
func ElectionEmbed(voting *types.Voting) *discordgo.MessageEmbed {
	kind, _ := gov.ParseKind(voting.Kind)
	cfg := kind.Config()
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s", cfg.Emoji, voting.Title),
		Description: voting.Description,
		Color:       cfg.Color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Voting ID: %s", voting.ID),
		},
	}
}

// RegistrationButtons builds the registration row for a council election.
func RegistrationButtons(votingID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Run as candidate",
					Style:    discordgo.PrimaryButton,
					CustomID: ButtonRegisterCandidate + ":" + votingID,
				},
				discordgo.Button{
					Label:    "Register to vote",
					Style:    discordgo.SecondaryButton,
					CustomID: ButtonRegisterVoter + ":" + votingID,
				},
			},
		},
	}
}

// CandidateButtons builds one button per candidate, five per row. Discord
// caps a message at five rows, so callers cap the candidate list beforehand.
func CandidateButtons(votingID string, candidates []types.ElectionCandidate) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for _, c := range candidates {
		row = append(row, discordgo.Button{
			Label:    c.Name,
			Style:    discordgo.PrimaryButton,
			CustomID: ButtonElect + ":" + votingID + ":" + c.ID,
		})
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

// CouncilElectedEmbed announces the freshly seated council.
func CouncilElectedEmbed(seated []types.Councillor) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(seated))
	for i, c := range seated {
		lines = append(lines, fmt.Sprintf("%d. <@%s>", i+1, c.DiscordID))
	}
	return &discordgo.MessageEmbed{
		Title:       "🗳️ Council election results",
		Description: "The new council has been seated:\n" + strings.Join(lines, "\n"),
		Color:       gov.KindElection.Config().Color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// ChancellorElectedEmbed announces the new chancellor.
func ChancellorElectedEmbed(chancellor *types.Councillor) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "👑 Chancellor election results",
		Description: fmt.Sprintf("<@%s> has been elected chancellor.", chancellor.DiscordID),
		Color:       gov.KindChancellorElection.Config().Color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// SuccessEmbed and ErrorEmbed are the short confirmations sent as ephemeral
// interaction responses.
func SuccessEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: "✅ " + message, Color: colorSuccess}
}

func ErrorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: "❌ " + message, Color: colorError}
}

func NoticeEmbed(title, message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: message,
		Color:       colorNeutral,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}
