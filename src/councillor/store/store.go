// Package store is the data-access layer. Every method takes a context and
// returns explicit errors; callers match the sentinel errors below instead of
// inspecting driver errors.
package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("store: not found")
	ErrAlreadyExists      = errors.New("store: already exists")
	ErrBadTransition      = errors.New("store: status transition not allowed")
	ErrConflict           = errors.New("store: concurrent update lost")
	ErrAlreadyVoted       = errors.New("store: ballot already cast")
	ErrAlreadyRegistered  = errors.New("store: already registered")
	ErrElectionInProgress = errors.New("store: election already in progress")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CouncilID derives the council document id from a guild id.
func CouncilID(guildID string) string {
	return guildID + "_c"
}

// GuildIDFromCouncil inverts CouncilID.
func GuildIDFromCouncil(councilID string) string {
	return strings.TrimSuffix(councilID, "_c")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
