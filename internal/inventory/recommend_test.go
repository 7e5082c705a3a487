package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-force-assess/internal/store"
)

func TestRecommendRetireDevAsset(t *testing.T) {
	rec := Recommend(RecommendationInput{
		Asset: store.Asset{AssetID: "a1", Environment: "development"},
	})

	assert.Equal(t, StrategyRetire, rec.Strategy)
	assert.Equal(t, "rules", rec.GeneratedBy)
}

func TestRecommendDevAssetWithDependents(t *testing.T) {
	rec := Recommend(RecommendationInput{
		Asset:        store.Asset{AssetID: "a1", Environment: "development"},
		DependedOnBy: 2,
	})

	assert.Equal(t, StrategyRehost, rec.Strategy)
}

func TestRecommendRefactorHighDebt(t *testing.T) {
	rec := Recommend(RecommendationInput{
		Asset:     store.Asset{AssetID: "a1", Environment: "production"},
		DebtScore: 90,
	})

	assert.Equal(t, StrategyRefactor, rec.Strategy)
	assert.Contains(t, rec.Rationale, "critical technical debt")
}

func TestRecommendReplatformModerateDebt(t *testing.T) {
	rec := Recommend(RecommendationInput{
		Asset:     store.Asset{AssetID: "a1", Environment: "production"},
		DebtScore: 60,
	})

	assert.Equal(t, StrategyReplatform, rec.Strategy)
}

func TestRecommendRepurchaseTaggedAsset(t *testing.T) {
	rec := Recommend(RecommendationInput{
		Asset: store.Asset{AssetID: "a1", Environment: "production", Tags: []string{"cots"}},
	})

	assert.Equal(t, StrategyRepurchase, rec.Strategy)
}

func TestRecommendRetainCyclicAsset(t *testing.T) {
	rec := Recommend(RecommendationInput{
		Asset:   store.Asset{AssetID: "a1", Environment: "production"},
		InCycle: true,
	})

	assert.Equal(t, StrategyRetain, rec.Strategy)
}

func TestRecommendDefaultRehost(t *testing.T) {
	rec := Recommend(RecommendationInput{
		Asset: store.Asset{AssetID: "a1", Environment: "production", Completeness: 0.9},
	})

	assert.Equal(t, StrategyRehost, rec.Strategy)
	assert.Equal(t, 100, rec.Readiness)
}

func TestReadinessScoreNeverNegative(t *testing.T) {
	score := ReadinessScore(RecommendationInput{
		DebtScore:    100,
		DependsOn:    10,
		DependedOnBy: 10,
		InCycle:      true,
		Completeness: 0.2,
	})

	assert.Equal(t, 0, score)
}
