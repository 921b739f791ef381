package nba

import (
	"errors"
	"fmt"
	"strings"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	"github.com/jmespath/go-jmespath"
)

const (
	standingsHeadersExpr = "resultSets[?name=='Standings'] | [0].headers"
	standingsRowsExpr    = "resultSets[?name=='Standings'] | [0].rowSet"
)

// evalAny returns the value selected by expression, or nil when nothing matches.
func evalAny(expression string, payload any) (any, error) {
	v, err := jmespath.Search(expression, payload)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}

func standingsFromResultSets(payload map[string]any) ([]types.StandingRow, error) {
	h, err := evalAny(standingsHeadersExpr, payload)
	if err != nil {
		return nil, err
	}
	rs, err := evalAny(standingsRowsExpr, payload)
	if err != nil {
		return nil, err
	}
	headers, ok := h.([]any)
	if !ok {
		return nil, errors.New("standings result set has no headers")
	}
	rowSet, ok := rs.([]any)
	if !ok {
		return nil, errors.New("standings result set has no rows")
	}

	col := make(map[string]int, len(headers))
	for i, name := range headers {
		if s, ok := name.(string); ok {
			col[s] = i
		}
	}
	for _, need := range []string{"TeamID", "TeamCity", "TeamName", "WINS", "LOSSES", "WinPCT"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("standings column %s missing", need)
		}
	}

	out := make([]types.StandingRow, 0, len(rowSet))
	for i, r := range rowSet {
		row, ok := r.([]any)
		if !ok || len(row) < len(headers) {
			return nil, fmt.Errorf("standings row %d malformed", i)
		}
		out = append(out, types.StandingRow{
			TeamID:     int(number(row[col["TeamID"]])),
			TeamName:   strings.TrimSpace(fmt.Sprintf("%v %v", row[col["TeamCity"]], row[col["TeamName"]])),
			Wins:       int(number(row[col["WINS"]])),
			Losses:     int(number(row[col["LOSSES"]])),
			WinPercent: number(row[col["WinPCT"]]),
		})
	}
	return out, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}
