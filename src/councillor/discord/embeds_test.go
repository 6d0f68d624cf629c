package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/types"
)

func TestSanitizeStripsMarkup(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("<script>alert(1)</script>hello"))
	assert.Equal(t, "bold", Sanitize("<b>bold</b>"))
	assert.Equal(t, "plain text", Sanitize("  plain text  "))
}

func TestSplitCustomID(t *testing.T) {
	action, args := SplitCustomID("elect:voting-1:cand-2")
	assert.Equal(t, "elect", action)
	assert.Equal(t, []string{"voting-1", "cand-2"}, args)

	action, args = SplitCustomID("ballot_for:voting-1")
	assert.Equal(t, "ballot_for", action)
	assert.Equal(t, []string{"voting-1"}, args)
}

func TestVotingEmbedCarriesKindConfig(t *testing.T) {
	voting := &types.Voting{
		ID:        "v-1",
		Kind:      string(gov.KindAmendment),
		Title:     "Term limits",
		VotingEnd: time.Now().Add(72 * time.Hour),
	}
	embed := VotingEmbed(voting, "user-1")

	cfg := gov.KindAmendment.Config()
	assert.Equal(t, cfg.Color, embed.Color)
	assert.Contains(t, embed.Title, cfg.Emoji)
	assert.Contains(t, embed.Title, "Term limits")
	assert.Contains(t, embed.Footer.Text, "v-1")

	var majority string
	for _, f := range embed.Fields {
		if f.Name == "Required majority" {
			majority = f.Value
		}
	}
	assert.Equal(t, "more than 66%", majority)
}

func TestCandidateButtonsRowLayout(t *testing.T) {
	candidates := make([]types.ElectionCandidate, 7)
	for i := range candidates {
		candidates[i] = types.ElectionCandidate{ID: string(rune('a' + i)), Name: "C"}
	}
	rows := CandidateButtons("v-1", candidates)

	require.Len(t, rows, 2)
	first := rows[0].(discordgo.ActionsRow)
	second := rows[1].(discordgo.ActionsRow)
	assert.Len(t, first.Components, 5)
	assert.Len(t, second.Components, 2)

	button := first.Components[0].(discordgo.Button)
	assert.Equal(t, "elect:v-1:a", button.CustomID)
}

func TestResultEmbedTurnout(t *testing.T) {
	voting := &types.Voting{ID: "v-1", Kind: string(gov.KindLegislation), Title: "Budget"}

	passed := ResultEmbed(voting, 3, 1, true)
	assert.Equal(t, colorSuccess, passed.Color)
	assert.Contains(t, passed.Description, "75% in favour")

	empty := ResultEmbed(voting, 0, 0, false)
	assert.Equal(t, colorError, empty.Color)
	assert.Contains(t, empty.Description, "no ballots were cast")
}
