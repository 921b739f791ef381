// Package rank orders games by how much the configured favorite teams care about them.
package rank

import (
	"sort"
	"strings"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"
)

// Ranker assigns rank 1 to games with the first favorite team, 2 to the
// second, and so on. Games without a favorite are unranked.
type Ranker struct {
	priority map[string]int
}

// New builds a ranker from tricodes in priority order. Repeats keep their first position.
func New(favorites []string) *Ranker {
	r := &Ranker{priority: make(map[string]int, len(favorites))}
	for i, f := range favorites {
		f = strings.ToUpper(strings.TrimSpace(f))
		if _, ok := r.priority[f]; !ok && f != "" {
			r.priority[f] = i + 1
		}
	}
	return r
}

// Rank returns the best rank of either team, or false when neither is a favorite.
func (r *Ranker) Rank(g types.Game) (int, bool) {
	best := 0
	for _, t := range g.Teams() {
		if p, ok := r.priority[strings.ToUpper(t.TeamTricode)]; ok && (best == 0 || p < best) {
			best = p
		}
	}
	return best, best != 0
}

// Ranked is a game paired with its rank.
type Ranked struct {
	Game types.Game
	Rank int
}

// Important returns the ranked games ordered by rank, then tip-off time.
func (r *Ranker) Important(games []types.Game) []Ranked {
	out := make([]Ranked, 0, len(games))
	for _, g := range games {
		if p, ok := r.Rank(g); ok {
			out = append(out, Ranked{Game: g, Rank: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Game.GameTimeUTC.Before(out[j].Game.GameTimeUTC)
	})
	return out
}
