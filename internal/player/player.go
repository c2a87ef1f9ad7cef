// Package player merges a player's ban history across every community the
// requesting moderator can see. The aggregator never mutates: it reads, tags
// each entry with its originating community, and orders by relevance.
package player

import (
	"context"
	"sort"
	"time"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/ban"
	"github.com/samber/lo"
)

// Standing is the cross-community view of one player. Entries beyond the page
// size are cut, never hidden: Remaining tells the caller how many more exist.
type Standing struct {
	PlayerID   int64     `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Active     []ban.Ban `json:"active"`
	Historical []ban.Ban `json:"historical"`
	Remaining  int       `json:"remaining"`
	FetchedOn  time.Time `json:"fetched_on"`
}

type Standings struct {
	bans     ban.Bans
	pageSize int
}

func NewStandings(bans ban.Bans, pageSize int) Standings {
	if pageSize <= 0 {
		pageSize = 25
	}

	return Standings{bans: bans, pageSize: pageSize}
}

// ByPlayer returns the merged standing for a player over the requester's
// scope. Active bans come first, newest first, then the historical record.
func (s Standings) ByPlayer(ctx context.Context, profile auth.Profile, playerID int64) (Standing, error) {
	bans, errBans := s.bans.Query(ctx, profile, ban.QueryOpts{PlayerID: playerID})
	if errBans != nil {
		return Standing{}, errBans
	}

	now := time.Now()

	active, historical := lo.FilterReject(bans, func(b ban.Ban, _ int) bool {
		return b.InForce(now)
	})

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedOn.After(active[j].CreatedOn)
	})
	sort.Slice(historical, func(i, j int) bool {
		return historical[i].CreatedOn.After(historical[j].CreatedOn)
	})

	standing := Standing{
		PlayerID:  playerID,
		FetchedOn: now,
	}

	for _, entry := range bans {
		if entry.PlayerName != "" {
			standing.PlayerName = entry.PlayerName

			break
		}
	}

	// Truncate against a single budget shared by both partitions, active
	// entries first.
	budget := s.pageSize

	standing.Active = lo.Subset(active, 0, uint(budget))
	budget -= len(standing.Active)

	standing.Historical = lo.Subset(historical, 0, uint(budget))
	standing.Remaining = len(active) + len(historical) - len(standing.Active) - len(standing.Historical)

	return standing, nil
}
