// Package rolesync keeps Discord role assignments aligned with the stored
// government. Every operation is idempotent; a member who already holds the
// role is left alone.
package rolesync

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/councilbot/councillor/src/shared/logx"
	"github.com/councilbot/councillor/src/shared/types"
)

// Session is the slice of discordgo the syncer needs. Narrow so tests can
// fake it.
type Session interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

type Syncer struct {
	session Session
}

func New(session Session) *Syncer {
	return &Syncer{session: session}
}

// EnsureHas grants roleID to each member. Per-member failures are collected
// as warnings; one deleted account never aborts the batch.
func (s *Syncer) EnsureHas(guildID, roleID string, memberIDs []string) []error {
	if roleID == "" {
		return nil
	}
	var warnings []error
	for _, memberID := range memberIDs {
		if err := s.session.GuildMemberRoleAdd(guildID, memberID, roleID); err != nil {
			warnings = append(warnings, fmt.Errorf("grant role to %s: %w", memberID, err))
		}
	}
	return warnings
}

// EnsureLacks removes roleID from each member.
func (s *Syncer) EnsureLacks(guildID, roleID string, memberIDs []string) []error {
	if roleID == "" {
		return nil
	}
	var warnings []error
	for _, memberID := range memberIDs {
		if err := s.session.GuildMemberRoleRemove(guildID, memberID, roleID); err != nil {
			warnings = append(warnings, fmt.Errorf("remove role from %s: %w", memberID, err))
		}
	}
	return warnings
}

// RotateCouncil strips the councillor role from the outgoing seats and grants
// it to the incoming ones.
func (s *Syncer) RotateCouncil(guild *types.Guild, outgoing, incoming []string) {
	for _, err := range s.EnsureLacks(guild.ID, guild.CouncillorRoleID, outgoing) {
		logx.Warn("rolesync", "%v", err)
	}
	for _, err := range s.EnsureHas(guild.ID, guild.CouncillorRoleID, incoming) {
		logx.Warn("rolesync", "%v", err)
	}
}

// HandChancellery moves the chancellor role from the previous holder to the
// new one. Empty ids are skipped.
func (s *Syncer) HandChancellery(guild *types.Guild, previousDiscordID, nextDiscordID string) {
	if previousDiscordID != "" && previousDiscordID != nextDiscordID {
		for _, err := range s.EnsureLacks(guild.ID, guild.ChancellorRoleID, []string{previousDiscordID}) {
			logx.Warn("rolesync", "%v", err)
		}
	}
	if nextDiscordID != "" {
		for _, err := range s.EnsureHas(guild.ID, guild.ChancellorRoleID, []string{nextDiscordID}) {
			logx.Warn("rolesync", "%v", err)
		}
	}
}

// MinistryRoles grants every role attached to a ministry to its minister.
func (s *Syncer) MinistryRoles(guildID string, roleIDs []string, ministerDiscordID string) {
	if ministerDiscordID == "" {
		return
	}
	for _, roleID := range roleIDs {
		for _, err := range s.EnsureHas(guildID, roleID, []string{ministerDiscordID}) {
			logx.Warn("rolesync", "%v", err)
		}
	}
}
