// Package resolver runs the daily job that closes expired votings: it
// tallies proposals, seats election winners and crowns chancellors. Discord
// side effects go through the Announcer so the job itself stays testable.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/councilbot/councillor/src/councillor/config"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/logx"
	"github.com/councilbot/councillor/src/shared/types"
)

// Announcer posts resolution results back to Discord and applies role
// changes. The bot implements it; tests use a recorder.
type Announcer interface {
	ProposalResolved(ctx context.Context, voting *types.Voting, yes, no int, passed bool) error
	CouncilElected(ctx context.Context, voting *types.Voting, seated []types.Councillor, outgoingDiscordIDs []string) error
	ElectionFailed(ctx context.Context, voting *types.Voting, reason string) error
	ChancellorElected(ctx context.Context, voting *types.Voting, chancellor *types.Councillor, previousDiscordID string) error
}

type Resolver struct {
	store     *store.Store
	rdb       *redis.Client
	locker    *data.Locker
	announcer Announcer
	cfg       config.Config
}

func New(s *store.Store, rdb *redis.Client, locker *data.Locker, announcer Announcer, cfg config.Config) *Resolver {
	return &Resolver{store: s, rdb: rdb, locker: locker, announcer: announcer, cfg: cfg}
}

// Run blocks until ctx is cancelled. Normal schedule is once per day at the
// configured UTC wall-clock time; debug mode polls every minute instead.
func (r *Resolver) Run(ctx context.Context) {
	if r.cfg.DebugMode {
		logx.Warn("resolver", "debug mode: resolving every minute")
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		r.ResolveDue(ctx, time.Now().UTC())
		for {
			select {
			case <-ctx.Done():
				logx.Info("resolver", "stopping")
				return
			case <-ticker.C:
				r.ResolveDue(ctx, time.Now().UTC())
			}
		}
	}

	for {
		wait := untilNext(r.cfg.ResolveHour, r.cfg.ResolveMinute, time.Now().UTC())
		logx.Info("resolver", "next run in %s", wait.Round(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logx.Info("resolver", "stopping")
			return
		case <-timer.C:
			r.ResolveDue(ctx, time.Now().UTC())
		}
	}
}

// untilNext returns the duration until the next occurrence of hh:mm UTC.
// A run that lands exactly on the boundary waits a full day rather than
// firing twice.
func untilNext(hour, minute int, now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// ResolveDue closes every voting whose window has expired. Failures are per
// voting: one bad row never blocks the rest of the batch.
func (r *Resolver) ResolveDue(ctx context.Context, now time.Time) {
	due, err := r.store.ExpiredVotings(ctx, now)
	if err != nil {
		logx.Error("resolver", "listing expired votings: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	logx.Info("resolver", "resolving %d expired voting(s)", len(due))

	for i := range due {
		voting := &due[i]
		err := r.locker.WithLock("resolve:"+voting.ID, 30*time.Second, func() error {
			return r.resolveOne(ctx, voting)
		})
		switch {
		case err == nil:
		case errors.Is(err, store.ErrConflict), errors.Is(err, data.ErrLockNotAcquired):
			// Another instance got there first.
		default:
			logx.Error("resolver", "resolving %s: %v", voting.ID, err)
			r.audit(ctx, voting, "resolve_error", map[string]interface{}{"error": err.Error()}, "error")
		}
	}
}

func (r *Resolver) resolveOne(ctx context.Context, voting *types.Voting) error {
	kind, err := gov.ParseKind(voting.Kind)
	if err != nil {
		return err
	}
	switch kind {
	case gov.KindElection:
		return r.resolveCouncilElection(ctx, voting)
	case gov.KindChancellorElection:
		return r.resolveChancellorElection(ctx, voting)
	default:
		return r.resolveProposal(ctx, voting)
	}
}

func (r *Resolver) resolveProposal(ctx context.Context, voting *types.Voting) error {
	votes, err := r.store.Votes(ctx, voting.ID)
	if err != nil {
		return err
	}
	yes, no := gov.TallyBallots(votes)
	passed := gov.ProposalPassed(yes, yes+no, voting.RequiredPercentage)

	to := gov.StatusFailed
	if passed {
		to = gov.StatusPassed
	}
	if err := r.store.TransitionVoting(ctx, voting.ID, gov.StatusVoting, to); err != nil {
		return err
	}

	if err := r.announcer.ProposalResolved(ctx, voting, yes, no, passed); err != nil {
		logx.Warn("resolver", "announcing %s: %v", voting.ID, err)
	} else if err := r.store.MarkAnnounced(ctx, voting.ID); err != nil {
		return err
	}

	r.audit(ctx, voting, "proposal_resolved", map[string]interface{}{
		"yes": yes, "no": no, "passed": passed,
	}, "info")
	return nil
}

func (r *Resolver) resolveCouncilElection(ctx context.Context, voting *types.Voting) error {
	guildID := store.GuildIDFromCouncil(voting.CouncilID)
	guild, err := r.store.Guild(ctx, guildID)
	if err != nil {
		return err
	}
	candidates, err := r.store.Candidates(ctx, voting.ID)
	if err != nil {
		return err
	}

	winners := gov.ElectWinners(candidates, guild.MaxCouncillors)
	if len(winners) == 0 {
		if err := r.store.TransitionVoting(ctx, voting.ID, gov.StatusVoting, gov.StatusFailed); err != nil {
			return err
		}
		if err := r.store.EndElection(ctx, guildID); err != nil {
			return err
		}
		if err := r.announcer.ElectionFailed(ctx, voting, "no ballots were cast"); err != nil {
			logx.Warn("resolver", "announcing %s: %v", voting.ID, err)
		}
		r.audit(ctx, voting, "election_failed", nil, "warning")
		return nil
	}

	if err := r.store.TransitionVoting(ctx, voting.ID, gov.StatusVoting, gov.StatusPassed); err != nil {
		return err
	}

	// Remember the outgoing seats before the rotation, for the role sync.
	var outgoing []string
	if sitting, err := r.store.Councillors(ctx, guildID, true); err == nil {
		for _, c := range sitting {
			outgoing = append(outgoing, c.DiscordID)
		}
	}

	seated, err := r.store.RotateSeats(ctx, guildID, winners)
	if err != nil {
		return err
	}
	winnerIDs := make([]string, len(winners))
	for i, w := range winners {
		winnerIDs[i] = w.ID
	}
	if err := r.store.MarkElected(ctx, winnerIDs); err != nil {
		return err
	}
	if err := r.store.EndElection(ctx, guildID); err != nil {
		return err
	}

	if err := r.announcer.CouncilElected(ctx, voting, seated, outgoing); err != nil {
		logx.Warn("resolver", "announcing %s: %v", voting.ID, err)
	} else if err := r.store.MarkAnnounced(ctx, voting.ID); err != nil {
		return err
	}

	r.audit(ctx, voting, "council_elected", map[string]interface{}{
		"seats": len(seated),
	}, "info")
	logx.Success("resolver", "seated %d councillor(s) for guild %s", len(seated), guildID)
	return nil
}

func (r *Resolver) resolveChancellorElection(ctx context.Context, voting *types.Voting) error {
	guildID := store.GuildIDFromCouncil(voting.CouncilID)
	candidates, err := r.store.Candidates(ctx, voting.ID)
	if err != nil {
		return err
	}

	winner, err := gov.ChancellorWinner(candidates)
	if errors.Is(err, gov.ErrNoVotesCast) {
		if err := r.store.TransitionVoting(ctx, voting.ID, gov.StatusVoting, gov.StatusFailed); err != nil {
			return err
		}
		if err := r.store.EndElection(ctx, guildID); err != nil {
			return err
		}
		if err := r.announcer.ElectionFailed(ctx, voting, "no ballots were cast, the chancellery stays vacant"); err != nil {
			logx.Warn("resolver", "announcing %s: %v", voting.ID, err)
		}
		r.audit(ctx, voting, "chancellor_election_failed", nil, "warning")
		return nil
	}
	if err != nil {
		return err
	}

	councillor, err := r.store.Councillor(ctx, winner.DiscordID, guildID)
	if err != nil {
		return fmt.Errorf("winner %s holds no seat: %w", winner.DiscordID, err)
	}

	// Remember the sitting chancellor before the handover, for the role sync.
	previousDiscordID := ""
	if sitting, err := r.store.Councillors(ctx, guildID, true); err == nil {
		for _, c := range sitting {
			if c.IsChancellor && c.DiscordID != councillor.DiscordID {
				previousDiscordID = c.DiscordID
			}
		}
	}

	if err := r.store.TransitionVoting(ctx, voting.ID, gov.StatusVoting, gov.StatusPassed); err != nil {
		return err
	}
	if err := r.store.CrownChancellor(ctx, guildID, councillor.ID); err != nil {
		return err
	}
	if err := r.store.MarkElected(ctx, []string{winner.ID}); err != nil {
		return err
	}
	if err := r.store.EndElection(ctx, guildID); err != nil {
		return err
	}

	if err := r.announcer.ChancellorElected(ctx, voting, councillor, previousDiscordID); err != nil {
		logx.Warn("resolver", "announcing %s: %v", voting.ID, err)
	} else if err := r.store.MarkAnnounced(ctx, voting.ID); err != nil {
		return err
	}

	r.audit(ctx, voting, "chancellor_elected", map[string]interface{}{
		"chancellor": councillor.DiscordID,
	}, "info")
	logx.Success("resolver", "crowned chancellor %s for guild %s", councillor.Name, guildID)
	return nil
}

func (r *Resolver) audit(ctx context.Context, voting *types.Voting, action string, details map[string]interface{}, severity string) {
	typ := "election"
	if !gov.Kind(voting.Kind).IsElection() {
		typ = "vote"
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["voting"] = voting.ID
	details["kind"] = voting.Kind
	err := r.store.Audit(ctx, r.rdb, types.AuditLog{
		GuildID:  store.GuildIDFromCouncil(voting.CouncilID),
		Type:     typ,
		Action:   action,
		Details:  data.MarshalDetails(details),
		Severity: severity,
	})
	if err != nil {
		logx.Warn("resolver", "audit write failed: %v", err)
	}
}
