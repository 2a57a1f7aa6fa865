package config

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ModelPricing holds per-million-token prices for a model.
type ModelPricing struct {
	InputPerMTok        float64
	OutputPerMTok       float64
	CacheWrite5mPerMTok float64
	CacheWrite1hPerMTok float64
	CacheReadPerMTok    float64
}

type modelPricingVersion struct {
	EffectiveFrom time.Time
	Pricing       ModelPricing
}

var (
	opusPricing = ModelPricing{
		InputPerMTok: 5.00, OutputPerMTok: 25.00,
		CacheWrite5mPerMTok: 6.25, CacheWrite1hPerMTok: 10.00, CacheReadPerMTok: 0.50,
	}
	legacyOpusPricing = ModelPricing{
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheWrite5mPerMTok: 18.75, CacheWrite1hPerMTok: 30.00, CacheReadPerMTok: 1.50,
	}
	sonnetPricing = ModelPricing{
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWrite5mPerMTok: 3.75, CacheWrite1hPerMTok: 6.00, CacheReadPerMTok: 0.30,
	}
	haiku45Pricing = ModelPricing{
		InputPerMTok: 1.00, OutputPerMTok: 5.00,
		CacheWrite5mPerMTok: 1.25, CacheWrite1hPerMTok: 2.00, CacheReadPerMTok: 0.10,
	}
	haiku35Pricing = ModelPricing{
		InputPerMTok: 0.80, OutputPerMTok: 4.00,
		CacheWrite5mPerMTok: 1.00, CacheWrite1hPerMTok: 1.60, CacheReadPerMTok: 0.08,
	}
)

// ModelCatalog lists known models in display order. Aggregations list these
// first and append unknown models after them.
var ModelCatalog = []string{
	"claude-opus-4-6",
	"claude-opus-4-5",
	"claude-opus-4-1",
	"claude-opus-4",
	"claude-sonnet-4-6",
	"claude-sonnet-4-5",
	"claude-sonnet-4",
	"claude-3-7-sonnet",
	"claude-haiku-4-5",
	"claude-3-5-haiku",
}

// DefaultPricing maps model base names to their pricing.
var DefaultPricing = map[string]ModelPricing{
	"claude-opus-4-6":   opusPricing,
	"claude-opus-4-5":   opusPricing,
	"claude-opus-4-1":   legacyOpusPricing,
	"claude-opus-4":     legacyOpusPricing,
	"claude-sonnet-4-6": sonnetPricing,
	"claude-sonnet-4-5": sonnetPricing,
	"claude-sonnet-4":   sonnetPricing,
	"claude-3-7-sonnet": sonnetPricing,
	"claude-haiku-4-5":  haiku45Pricing,
	"claude-3-5-haiku":  haiku35Pricing,
}

var (
	pricingMu sync.RWMutex
	// defaultPricingHistory stores effective-dated prices for each model.
	// Entries must be sorted by EffectiveFrom ascending.
	defaultPricingHistory = makeDefaultPricingHistory(DefaultPricing)
)

func makeDefaultPricingHistory(base map[string]ModelPricing) map[string][]modelPricingVersion {
	history := make(map[string][]modelPricingVersion, len(base))
	for modelName, pricing := range base {
		history[modelName] = []modelPricingVersion{{Pricing: pricing}}
	}
	return history
}

// ApplyPricingOverrides replaces fields of the latest price entry per model.
func ApplyPricingOverrides(o PricingOverrides) {
	if len(o.Overrides) == 0 {
		return
	}
	pricingMu.Lock()
	defer pricingMu.Unlock()

	for name, ov := range o.Overrides {
		key := normalizeModelNameLocked(name)
		base := DefaultPricing[key]
		if versions := defaultPricingHistory[key]; len(versions) > 0 {
			base = versions[len(versions)-1].Pricing
		}
		setIf := func(dst *float64, v *float64) {
			if v != nil {
				*dst = *v
			}
		}
		setIf(&base.InputPerMTok, ov.InputPerMTok)
		setIf(&base.OutputPerMTok, ov.OutputPerMTok)
		setIf(&base.CacheWrite5mPerMTok, ov.CacheWrite5mPerMTok)
		setIf(&base.CacheWrite1hPerMTok, ov.CacheWrite1hPerMTok)
		setIf(&base.CacheReadPerMTok, ov.CacheReadPerMTok)

		versions := defaultPricingHistory[key]
		if len(versions) == 0 {
			defaultPricingHistory[key] = []modelPricingVersion{{Pricing: base}}
			continue
		}
		versions[len(versions)-1].Pricing = base
	}
}

// NormalizeModelName strips date suffixes from model identifiers.
// e.g., "claude-opus-4-5-20251101" -> "claude-opus-4-5"
func NormalizeModelName(raw string) string {
	pricingMu.RLock()
	defer pricingMu.RUnlock()
	return normalizeModelNameLocked(raw)
}

func normalizeModelNameLocked(raw string) string {
	if _, ok := defaultPricingHistory[raw]; ok {
		return raw
	}

	parts := strings.Split(raw, "-")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if isAllDigits(last) && len(last) >= 8 {
			return strings.Join(parts[:len(parts)-1], "-")
		}
	}
	return raw
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// LookupPricingAt returns the pricing for a model at the given timestamp.
// If at is zero, the latest known pricing entry is used.
func LookupPricingAt(model string, at time.Time) (ModelPricing, bool) {
	pricingMu.RLock()
	defer pricingMu.RUnlock()

	versions, ok := defaultPricingHistory[normalizeModelNameLocked(model)]
	if !ok || len(versions) == 0 {
		return ModelPricing{}, false
	}
	if at.IsZero() {
		return versions[len(versions)-1].Pricing, true
	}

	at = at.UTC()
	selected := versions[0].Pricing
	for _, v := range versions {
		if v.EffectiveFrom.IsZero() || !at.Before(v.EffectiveFrom.UTC()) {
			selected = v.Pricing
			continue
		}
		break
	}
	return selected, true
}

// CalculateCostAt computes the estimated cost in USD for a single API call at a point in time.
func CalculateCostAt(
	model string,
	at time.Time,
	inputTokens,
	outputTokens,
	cache5m,
	cache1h,
	cacheRead int64,
) float64 {
	pricing, ok := LookupPricingAt(model, at)
	if !ok {
		return 0
	}

	cost := float64(inputTokens) * pricing.InputPerMTok / 1_000_000
	cost += float64(outputTokens) * pricing.OutputPerMTok / 1_000_000
	cost += float64(cache5m) * pricing.CacheWrite5mPerMTok / 1_000_000
	cost += float64(cache1h) * pricing.CacheWrite1hPerMTok / 1_000_000
	cost += float64(cacheRead) * pricing.CacheReadPerMTok / 1_000_000
	return cost
}

// CatalogIndex returns the position of a model in ModelCatalog, or -1.
func CatalogIndex(model string) int {
	n := NormalizeModelName(model)
	for i, m := range ModelCatalog {
		if m == n {
			return i
		}
	}
	return -1
}

// DisplayName turns a model id into a short label.
// "claude-opus-4-5-20251101" -> "Opus 4.5", "claude-3-5-haiku" -> "Haiku 3.5".
func DisplayName(model string) string {
	n := NormalizeModelName(model)
	if !strings.HasPrefix(n, "claude-") {
		return model
	}
	parts := strings.Split(strings.TrimPrefix(n, "claude-"), "-")

	var family string
	var version []string
	for _, p := range parts {
		if isAllDigits(p) {
			version = append(version, p)
			continue
		}
		if family != "" {
			return model
		}
		family = p
	}
	if family == "" || len(version) == 0 || len(version) > 2 {
		return model
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(family[:1])+family[1:], strings.Join(version, "."))
}

// DefaultContextWindow is the token capacity assumed for unknown models.
const DefaultContextWindow int64 = 200_000

// ContextWindow returns the context capacity for a model.
func (c Config) ContextWindow(model string) int64 {
	if v, ok := c.Models.ContextWindow[NormalizeModelName(model)]; ok && v > 0 {
		return v
	}
	if v, ok := c.Models.ContextWindow[model]; ok && v > 0 {
		return v
	}
	return DefaultContextWindow
}
