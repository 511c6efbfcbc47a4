package billing

import (
	"strings"

	"github.com/blockforge/blockforge/internal/pkg/env"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"
	PlanTeam = "team"
)

// PlanMap resolves provider price IDs to internal plan tiers. The mapping is
// configuration, not code or schema: an unmapped price must never grant more
// than the free tier.
type PlanMap map[string]string

// LoadPlanMapFromEnv parses PADDLE_PRICE_PLAN_MAP, a comma-separated list of
// "price_id=tier" pairs. Pairs with unknown tier names are normalized to free.
func LoadPlanMapFromEnv() PlanMap {
	return ParsePlanMap(env.GetEnv("PADDLE_PRICE_PLAN_MAP", ""))
}

// ParsePlanMap parses "price_id=tier,price_id=tier" into a PlanMap.
func ParsePlanMap(raw string) PlanMap {
	m := make(PlanMap)
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			continue
		}
		priceID := strings.TrimSpace(key)
		if priceID == "" {
			continue
		}
		m[priceID] = normalizePlan(value)
	}
	return m
}

// Resolve maps a price ID to its internal plan tier, defaulting to free.
func (m PlanMap) Resolve(priceID string) string {
	if plan, ok := m[strings.TrimSpace(priceID)]; ok {
		return plan
	}
	return PlanFree
}

func normalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanPro:
		return PlanPro
	case PlanTeam:
		return PlanTeam
	default:
		return PlanFree
	}
}

func planRank(plan string) int {
	switch normalizePlan(plan) {
	case PlanTeam:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// PlanCovers reports whether a user's plan satisfies a required tier.
func PlanCovers(userPlan, requiredPlan string) bool {
	return planRank(userPlan) >= planRank(requiredPlan)
}
