package searcher

import (
	"sort"

	"github.com/fulvian/devstream/internal/scoring"
	"github.com/fulvian/devstream/internal/storage"
	"github.com/fulvian/devstream/pkg/types"
)

// strategyHits holds one strategy's raw scores, unique by entry ID
type strategyHits struct {
	strategy   types.Strategy
	raw        map[string]float64
	normalized map[string]float64
}

func newStrategyHits(strategy types.Strategy, hits []storage.ScoredEntry, entries map[string]*types.MemoryEntry, order *[]string) strategyHits {
	sh := strategyHits{
		strategy:   strategy,
		raw:        make(map[string]float64, len(hits)),
		normalized: make(map[string]float64, len(hits)),
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Entry == nil || h.Entry.ID == "" {
			continue
		}
		id := h.Entry.ID
		if prev, ok := sh.raw[id]; ok {
			if h.Score > prev {
				sh.raw[id] = h.Score
			}
			continue
		}
		sh.raw[id] = h.Score
		ids = append(ids, id)

		if _, ok := entries[id]; !ok {
			entries[id] = h.Entry
			*order = append(*order, id)
		}
	}

	raw := make([]float64, len(ids))
	for i, id := range ids {
		raw[i] = sh.raw[id]
	}
	for i, n := range scoring.NormalizeScores(raw) {
		sh.normalized[ids[i]] = n
	}
	return sh
}

// fuse normalizes each strategy independently and combines them with the
// query weights. An entry missing from a strategy scores 0 there.
func fuse(semantic, keyword, fullText []storage.ScoredEntry, w scoring.Weights) ([]types.SearchResult, error) {
	entries := make(map[string]*types.MemoryEntry)
	order := make([]string, 0, len(semantic)+len(keyword)+len(fullText))

	strategies := []strategyHits{
		newStrategyHits(types.StrategySemantic, semantic, entries, &order),
		newStrategyHits(types.StrategyKeyword, keyword, entries, &order),
		newStrategyHits(types.StrategyFullText, fullText, entries, &order),
	}

	columns := make([][]float64, len(strategies))
	for i := range columns {
		columns[i] = make([]float64, len(order))
	}
	for row, id := range order {
		for i, sh := range strategies {
			columns[i][row] = sh.normalized[id]
		}
	}

	combined, err := scoring.CombineScores(columns[0], columns[1], columns[2], w)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, len(order))
	for row, id := range order {
		contributions := make([]types.StrategyScore, 0, len(strategies))
		for _, sh := range strategies {
			raw, ok := sh.raw[id]
			if !ok {
				continue
			}
			contributions = append(contributions, types.StrategyScore{
				Strategy:        sh.strategy,
				RawScore:        raw,
				NormalizedScore: sh.normalized[id],
			})
		}
		results[row] = types.SearchResult{
			Entry:         entries[id],
			Score:         combined[row],
			Contributions: contributions,
		}
	}
	return results, nil
}

// dedupe keeps the highest scored result per entry ID, preserving the
// position of the first occurrence. fuse already keys rows by ID, so this
// only enforces unique IDs for results that did not come from fuse.
func dedupe(results []types.SearchResult) []types.SearchResult {
	index := make(map[string]int, len(results))
	out := results[:0]
	for _, r := range results {
		if i, ok := index[r.Entry.ID]; ok {
			if r.Score > out[i].Score {
				out[i] = r
			}
			continue
		}
		index[r.Entry.ID] = len(out)
		out = append(out, r)
	}
	return out
}

func filterByScore(results []types.SearchResult, min float64) []types.SearchResult {
	if min <= 0 {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if r.Score >= min {
			out = append(out, r)
		}
	}
	return out
}

// sortResults orders by score desc, then newest first, then ID
func sortResults(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Entry.CreatedAt.Equal(b.Entry.CreatedAt) {
			return a.Entry.CreatedAt.After(b.Entry.CreatedAt)
		}
		return a.Entry.ID < b.Entry.ID
	})
}
