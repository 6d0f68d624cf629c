package types

import "time"

// Guilds. One row per Discord server the bot is enabled in.
type Guild struct {
	ID             string `gorm:"primaryKey;size:64"` // Discord guild id
	Name           string `gorm:"size:128;not null"`
	Description    string `gorm:"size:512"`
	Enabled        bool   `gorm:"default:true"`
	LoggingEnabled bool   `gorm:"default:true"`

	CouncillorRoleID    string `gorm:"size:64"`
	ChancellorRoleID    string `gorm:"size:64"`
	MinisterRoleID      string `gorm:"size:64"`
	PresidentRoleID     string `gorm:"size:64"`
	VicePresidentRoleID string `gorm:"size:64"`
	JudiciaryRoleID     string `gorm:"size:64"`
	CitizenRoleID       string `gorm:"size:64"`

	VotingChannelID       string `gorm:"size:64"`
	AnnouncementChannelID string `gorm:"size:64"`

	DaysRequirement int `gorm:"default:180"`
	MaxCouncillors  int `gorm:"default:9"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Councils. Derived id: "<guild id>_c".
type Council struct {
	ID                  string `gorm:"primaryKey;size:72"`
	GuildID             string `gorm:"index;size:64;not null"`
	CurrentChancellorID string `gorm:"size:64"` // councillor row id, empty when vacant
	ElectionInProgress  bool   `gorm:"default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Seat holders.
type Councillor struct {
	ID           string `gorm:"primaryKey;size:64"`
	DiscordID    string `gorm:"index;size:64;not null"`
	Name         string `gorm:"size:128;not null"`
	CouncilID    string `gorm:"index;size:72;not null"`
	JoinedAt     time.Time
	Active       bool `gorm:"default:true"`
	IsChancellor bool `gorm:"default:false"`
}

type Ministry struct {
	ID                string `gorm:"primaryKey;size:64"`
	Name              string `gorm:"size:128;not null"`
	Description       string `gorm:"size:1024"`
	CouncilID         string `gorm:"index;size:72;not null"`
	MinisterDiscordID string `gorm:"size:64"`
	DeputyDiscordID   string `gorm:"size:64"`
	RoleIDs           string `gorm:"size:512"` // comma separated Discord role ids
	CreatedBy         string `gorm:"size:64"`
	Active            bool   `gorm:"default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Votings. The id is the originating Discord message id when one exists,
// otherwise a generated uuid.
type Voting struct {
	ID                 string `gorm:"primaryKey;size:64"`
	Kind               string `gorm:"index;size:32;not null"`
	Status             string `gorm:"index;size:16;not null"`
	Title              string `gorm:"size:256;not null"`
	Description        string `gorm:"type:text"`
	CouncilID          string `gorm:"index;size:72;not null"`
	ProposerID         string `gorm:"size:64"` // councillor row id
	MessageID          string `gorm:"size:64"`
	VotingStart        *time.Time
	VotingEnd          time.Time `gorm:"index;not null"`
	VotingDays         int       `gorm:"default:0"` // 0 means the kind default
	RequiredPercentage float64   `gorm:"default:0.5"`
	ResultAnnounced    bool      `gorm:"default:false"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Ballots. The unique index is the backstop against the double-click race;
// the handlers also lock on (voting, voter) before the check-then-act.
type Vote struct {
	ID          string `gorm:"primaryKey;size:64"`
	VotingID    string `gorm:"uniqueIndex:idx_one_ballot;size:64;not null"`
	VoterID     string `gorm:"uniqueIndex:idx_one_ballot;size:64;not null"` // councillor row id, or Discord id for elections
	Stance      bool
	CandidateID string `gorm:"size:64"`
	CastAt      time.Time
}

type ElectionCandidate struct {
	ID           string `gorm:"primaryKey;size:64"`
	VotingID     string `gorm:"uniqueIndex:idx_one_candidacy;size:64;not null"`
	DiscordID    string `gorm:"uniqueIndex:idx_one_candidacy;size:64;not null"`
	Name         string `gorm:"size:128;not null"`
	RegisteredAt time.Time
	VoteCount    int  `gorm:"default:0"`
	Elected      bool `gorm:"default:false"`
}

type RegisteredVoter struct {
	ID           string `gorm:"primaryKey;size:64"`
	VotingID     string `gorm:"uniqueIndex:idx_one_registration;size:64;not null"`
	DiscordID    string `gorm:"uniqueIndex:idx_one_registration;size:64;not null"`
	Name         string `gorm:"size:128;not null"`
	RegisteredAt time.Time
	HasVoted     bool `gorm:"default:false"`
}

// Audit trail. Mirrored onto the Redis stream for external consumers.
type AuditLog struct {
	ID        uint64 `gorm:"primaryKey"`
	GuildID   string `gorm:"index;size:64;not null"`
	Type      string `gorm:"size:32;not null"` // command, vote, election, admin, chancellor_action, error
	Action    string `gorm:"size:64;not null"`
	DiscordID string `gorm:"size:64"`
	Details   string `gorm:"type:text"` // JSON blob
	Severity  string `gorm:"size:16;default:info"`
	CreatedAt time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}
