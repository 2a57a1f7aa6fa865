package pipeline

import (
	"slices"

	"github.com/samber/lo"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/model"
)

// tokenTotals is the Token Aggregator result for one window.
type tokenTotals struct {
	Tokens    model.TokenUsage
	CostNanos int64
	ByModel   []model.ModelUsage
	Sessions  int
	Messages  int
}

type modelBucket struct {
	usage     model.ModelUsage
	costNanos int64
	first     int
}

// aggregateTokens sums usage per model over events inside w. events must be
// effective and sorted by order key. Totals are derived from the per-model
// buckets, so the breakdown always adds up to the grand total.
func aggregateTokens(events []model.Event, w model.Window) tokenTotals {
	var out tokenTotals
	buckets := make(map[string]*modelBucket)
	sessions := make(map[string]struct{})

	for _, ev := range events {
		if !w.Contains(ev.Timestamp) {
			continue
		}
		out.Messages++
		sessions[ev.SessionID] = struct{}{}
		if ev.Role != model.RoleAssistant {
			continue
		}

		b := buckets[ev.Model]
		if b == nil {
			b = &modelBucket{
				usage: model.ModelUsage{Model: ev.Model, DisplayName: config.DisplayName(ev.Model)},
				first: len(buckets),
			}
			buckets[ev.Model] = b
		}
		b.usage.Tokens.Add(ev.Tokens)
		b.usage.Messages++
		b.costNanos += model.NanoUSD(ev.CostUSD)
	}

	list := lo.Values(buckets)
	slices.SortFunc(list, func(a, b *modelBucket) int {
		ai, bi := catalogRank(a.usage.Model), catalogRank(b.usage.Model)
		if ai != bi {
			return ai - bi
		}
		return a.first - b.first
	})

	out.ByModel = make([]model.ModelUsage, 0, len(list))
	for _, b := range list {
		b.usage.TotalTokens = b.usage.Tokens.Total()
		b.usage.CostUSD = model.FromNanoUSD(b.costNanos)
		out.ByModel = append(out.ByModel, b.usage)
		out.Tokens.Add(b.usage.Tokens)
		out.CostNanos += b.costNanos
	}
	out.Sessions = len(sessions)
	return out
}

// catalogRank sorts known models by catalog position and everything else
// after them.
func catalogRank(m string) int {
	if i := config.CatalogIndex(m); i >= 0 {
		return i
	}
	return len(config.ModelCatalog)
}
