package rolesync

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/councilbot/councillor/src/shared/types"
)

type fakeSession struct {
	added   []string
	removed []string
	failOn  string
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	if userID == f.failOn {
		return errors.New("unknown member")
	}
	f.added = append(f.added, userID+":"+roleID)
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	if userID == f.failOn {
		return errors.New("unknown member")
	}
	f.removed = append(f.removed, userID+":"+roleID)
	return nil
}

func TestEnsureHasCollectsWarnings(t *testing.T) {
	fake := &fakeSession{failOn: "gone"}
	syncer := New(fake)

	warnings := syncer.EnsureHas("guild", "role", []string{"a", "gone", "b"})

	assert.Len(t, warnings, 1)
	assert.Equal(t, []string{"a:role", "b:role"}, fake.added)
}

func TestEnsureHasEmptyRole(t *testing.T) {
	fake := &fakeSession{}
	syncer := New(fake)

	assert.Nil(t, syncer.EnsureHas("guild", "", []string{"a"}))
	assert.Empty(t, fake.added)
}

func TestRotateCouncil(t *testing.T) {
	fake := &fakeSession{}
	syncer := New(fake)
	guild := &types.Guild{ID: "guild", CouncillorRoleID: "councillor"}

	syncer.RotateCouncil(guild, []string{"old"}, []string{"new1", "new2"})

	assert.Equal(t, []string{"old:councillor"}, fake.removed)
	assert.Equal(t, []string{"new1:councillor", "new2:councillor"}, fake.added)
}

func TestHandChancellery(t *testing.T) {
	fake := &fakeSession{}
	syncer := New(fake)
	guild := &types.Guild{ID: "guild", ChancellorRoleID: "chanc"}

	syncer.HandChancellery(guild, "prev", "next")
	assert.Equal(t, []string{"prev:chanc"}, fake.removed)
	assert.Equal(t, []string{"next:chanc"}, fake.added)

	// Re-electing the sitting chancellor must not strip the role.
	fake.added, fake.removed = nil, nil
	syncer.HandChancellery(guild, "same", "same")
	assert.Empty(t, fake.removed)
	assert.Equal(t, []string{"same:chanc"}, fake.added)
}
