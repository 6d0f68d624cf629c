package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/types"
)

const testGuild = "111222333444555666"

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, data.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	s := store.New(db)
	_, err = s.CreateGuild(context.Background(), testGuild, "Web Republic", "", 180, 9)
	require.NoError(t, err)

	return New("0", db, nil), s
}

func get(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestVotingsRequiresGuild(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := get(t, srv, "/v1/votings")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "guild")
}

func TestVotingsListsOpen(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	open := &types.Voting{
		ID:        uuid.NewString(),
		Kind:      string(gov.KindLegislation),
		Status:    string(gov.StatusVoting),
		Title:     "Open one",
		CouncilID: store.CouncilID(testGuild),
		VotingEnd: time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, s.CreateVoting(ctx, open))
	closed := &types.Voting{
		ID:        uuid.NewString(),
		Kind:      string(gov.KindDecree),
		Status:    string(gov.StatusPassed),
		Title:     "Closed one",
		CouncilID: store.CouncilID(testGuild),
		VotingEnd: time.Now().UTC().Add(-24 * time.Hour),
	}
	require.NoError(t, s.CreateVoting(ctx, closed))

	rec, body := get(t, srv, "/v1/votings?guild="+testGuild)
	require.Equal(t, http.StatusOK, rec.Code)

	votings := body["votings"].([]interface{})
	require.Len(t, votings, 1)
	entry := votings[0].(map[string]interface{})
	assert.Equal(t, open.ID, entry["id"])
	assert.Equal(t, "Legislation", entry["kind_name"])
}

func TestCouncilEndpoint(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	alice, err := s.CreateCouncillor(ctx, "disc-alice", "Alice", testGuild)
	require.NoError(t, err)
	require.NoError(t, s.CrownChancellor(ctx, testGuild, alice.ID))

	rec, body := get(t, srv, "/v1/council?guild="+testGuild)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["election_in_progress"])

	seats := body["seats"].([]interface{})
	require.Len(t, seats, 1)
	seat := seats[0].(map[string]interface{})
	assert.Equal(t, "disc-alice", seat["discord_id"])
	assert.Equal(t, true, seat["is_chancellor"])
}

func TestCouncilUnknownGuild(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := get(t, srv, "/v1/council?guild=unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
