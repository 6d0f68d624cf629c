// Package web is the read-only status server: health and a small JSON view
// of each guild's council and open votings.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/logx"
)

type Server struct {
	engine *gin.Engine
	db     *gorm.DB
	rdb    *redis.Client
	store  *store.Store
	http   *http.Server
}

func New(port string, db *gorm.DB, rdb *redis.Client) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		engine: engine,
		db:     db,
		rdb:    rdb,
		store:  store.New(db),
		http: &http.Server{
			Addr:         ":" + port,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}

	engine.GET("/healthz", s.health)
	v1 := engine.Group("/v1")
	{
		v1.GET("/votings", s.votings)
		v1.GET("/council", s.council)
	}
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logx.Warn("web", "shutdown: %v", err)
		}
	}()

	logx.Info("web", "status server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Error("web", "serve: %v", err)
	}
}

func (s *Server) health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	code := http.StatusOK

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status["status"] = "degraded"
		status["mysql"] = "down"
		code = http.StatusServiceUnavailable
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(c.Request.Context()).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = "down"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, status)
}

func (s *Server) votings(c *gin.Context) {
	guildID := c.Query("guild")
	if guildID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild query parameter is required"})
		return
	}

	votings, err := s.store.ActiveVotings(c.Request.Context(), guildID)
	if err != nil {
		logx.Error("web", "listing votings for %s: %v", guildID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]gin.H, 0, len(votings))
	for _, v := range votings {
		entry := gin.H{
			"id":         v.ID,
			"kind":       v.Kind,
			"status":     v.Status,
			"title":      v.Title,
			"voting_end": v.VotingEnd.UTC().Format(time.RFC3339),
		}
		if kind, err := gov.ParseKind(v.Kind); err == nil {
			entry["kind_name"] = kind.Config().Name
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"guild": guildID, "votings": out})
}

func (s *Server) council(c *gin.Context) {
	guildID := c.Query("guild")
	if guildID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild query parameter is required"})
		return
	}

	council, err := s.store.Council(c.Request.Context(), guildID)
	if err == store.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "no council for that guild"})
		return
	}
	if err != nil {
		logx.Error("web", "council lookup for %s: %v", guildID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	councillors, err := s.store.Councillors(c.Request.Context(), guildID, true)
	if err != nil {
		logx.Error("web", "listing councillors for %s: %v", guildID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	seats := make([]gin.H, 0, len(councillors))
	for _, member := range councillors {
		seats = append(seats, gin.H{
			"discord_id":    member.DiscordID,
			"name":          member.Name,
			"is_chancellor": member.IsChancellor,
			"joined_at":     member.JoinedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"guild":                guildID,
		"election_in_progress": council.ElectionInProgress,
		"seats":                seats,
	})
}
