package inventory

import (
	"fmt"
	"strings"

	"ai-force-assess/internal/store"
)

// Migration strategies (the six Rs).
const (
	StrategyRehost     = "rehost"
	StrategyReplatform = "replatform"
	StrategyRefactor   = "refactor"
	StrategyRepurchase = "repurchase"
	StrategyRetire     = "retire"
	StrategyRetain     = "retain"
)

// RecommendationInput bundles everything the rules engine considers for one
// asset.
type RecommendationInput struct {
	Asset        store.Asset
	DebtScore    int
	DependsOn    int // direct out-degree in the dependency graph
	DependedOnBy int // direct in-degree
	InCycle      bool
	Completeness float64
}

// ReadinessScore estimates migration readiness on a 0-100 scale. High debt,
// heavy coupling, and poor data quality all reduce readiness.
func ReadinessScore(in RecommendationInput) int {
	score := 100
	score -= in.DebtScore / 2
	score -= (in.DependsOn + in.DependedOnBy) * 5
	if in.InCycle {
		score -= 15
	}
	if in.Completeness > 0 && in.Completeness < 0.8 {
		score -= int((0.8 - in.Completeness) * 50)
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Recommend applies the rules engine to one asset and produces its 6R
// recommendation. The crew-based recommender may later override it; rows it
// writes carry generated_by = "crew" instead of "rules".
func Recommend(in RecommendationInput) store.Recommendation {
	a := in.Asset
	readiness := ReadinessScore(in)

	strategy := StrategyRehost
	var reasons []string

	env := strings.ToLower(a.Environment)
	status := strings.ToLower(a.Status)

	switch {
	case status == "decommissioned" || status == "retired":
		strategy = StrategyRetire
		reasons = append(reasons, "asset is already marked for removal")
	case env == "development" || env == "dev" || env == "sandbox":
		if in.DependedOnBy == 0 {
			strategy = StrategyRetire
			reasons = append(reasons, "non-production asset with no dependents")
		} else {
			strategy = StrategyRehost
			reasons = append(reasons, "non-production asset still serving dependents")
		}
	case in.DebtScore >= 80:
		strategy = StrategyRefactor
		reasons = append(reasons, fmt.Sprintf("critical technical debt (score %d) rules out lift-and-shift", in.DebtScore))
	case in.DebtScore >= 50:
		strategy = StrategyReplatform
		reasons = append(reasons, fmt.Sprintf("significant technical debt (score %d) warrants a platform refresh", in.DebtScore))
	case hasTag(a, "saas-candidate") || hasTag(a, "cots"):
		strategy = StrategyRepurchase
		reasons = append(reasons, "commercial off-the-shelf workload with a SaaS equivalent")
	case in.InCycle:
		strategy = StrategyRetain
		reasons = append(reasons, "asset sits in a dependency cycle; untangle before migrating")
	case in.DependsOn+in.DependedOnBy >= 6:
		strategy = StrategyReplatform
		reasons = append(reasons, "heavily coupled asset benefits from a managed platform")
	default:
		strategy = StrategyRehost
		reasons = append(reasons, "low debt and light coupling make lift-and-shift the cheapest path")
	}

	if in.Completeness > 0 && in.Completeness < 0.5 {
		reasons = append(reasons, "inventory data is incomplete; confirm before executing")
	}

	return store.Recommendation{
		TenantID:    a.TenantID,
		AssetID:     a.AssetID,
		Strategy:    strategy,
		Rationale:   strings.Join(reasons, "; "),
		Readiness:   readiness,
		GeneratedBy: "rules",
	}
}

func hasTag(a store.Asset, tag string) bool {
	for _, t := range a.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
