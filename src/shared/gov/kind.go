package gov

import "fmt"

// Kind is the closed set of voting types. The zero value is invalid; parse
// stored tags through ParseKind.
type Kind string

const (
	KindLegislation        Kind = "legislation"
	KindAmendment          Kind = "amendment"
	KindImpeachment        Kind = "impeachment"
	KindConfidenceVote     Kind = "confidence_vote"
	KindDecree             Kind = "decree"
	KindOther              Kind = "other"
	KindElection           Kind = "election"
	KindChancellorElection Kind = "chancellor_election"
)

// KindConfig carries the per-kind parameters resolved once at lookup instead
// of being re-derived at every call site.
type KindConfig struct {
	Name               string
	Emoji              string
	Color              int
	VotingDays         int
	RequiredPercentage float64
	Description        string
}

var kindConfigs = map[Kind]KindConfig{
	KindLegislation: {
		Name:               "Legislation",
		Emoji:              "⚖️",
		Color:              0x4169E1,
		VotingDays:         1,
		RequiredPercentage: 0.5,
		Description:        "Regular legislative proposals",
	},
	KindAmendment: {
		Name:               "Amendment",
		Emoji:              "🔵",
		Color:              0x8A2BE2,
		VotingDays:         3,
		RequiredPercentage: 0.66,
		Description:        "Constitutional amendments requiring supermajority",
	},
	KindImpeachment: {
		Name:               "Impeachment",
		Emoji:              "📜",
		Color:              0xFF6347,
		VotingDays:         3,
		RequiredPercentage: 0.66,
		Description:        "Removal of officials from office",
	},
	KindConfidenceVote: {
		Name:               "Confidence Vote",
		Emoji:              "⚠️",
		Color:              0xFF4500,
		VotingDays:         3,
		RequiredPercentage: 0.66,
		Description:        "Vote of confidence in leadership",
	},
	KindDecree: {
		Name:               "Decree",
		Emoji:              "🛑",
		Color:              0xFFA500,
		VotingDays:         1,
		RequiredPercentage: 0.5,
		Description:        "Executive orders and decrees",
	},
	KindOther: {
		Name:               "Other",
		Emoji:              "🗳️",
		Color:              0x20B2AA,
		VotingDays:         3,
		RequiredPercentage: 0.5,
		Description:        "Miscellaneous proposals",
	},
	KindElection: {
		Name:       "Council Election",
		Emoji:      "🗳️",
		Color:      0x00B0F4,
		VotingDays: 3,
		// Elections rank candidates instead of counting a percentage.
		RequiredPercentage: 0,
		Description:        "Elections for council members",
	},
	KindChancellorElection: {
		Name:               "Chancellor Election",
		Emoji:              "👑",
		Color:              0xFFD700,
		VotingDays:         2,
		RequiredPercentage: 0,
		Description:        "Elections for chancellor (councillors only)",
	},
}

// ProposalKinds lists the kinds a councillor may pick in /propose, in display
// order. Elections are created through their own commands.
var ProposalKinds = []Kind{
	KindLegislation,
	KindAmendment,
	KindImpeachment,
	KindConfidenceVote,
	KindDecree,
	KindOther,
}

func ParseKind(tag string) (Kind, error) {
	k := Kind(tag)
	if _, ok := kindConfigs[k]; !ok {
		return "", fmt.Errorf("gov: unknown voting kind %q", tag)
	}
	return k, nil
}

func (k Kind) Config() KindConfig {
	return kindConfigs[k]
}

func (k Kind) IsElection() bool {
	return k == KindElection || k == KindChancellorElection
}

func (k Kind) String() string { return string(k) }
