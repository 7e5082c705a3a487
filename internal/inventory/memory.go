package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-force-assess/internal/store"
)

// MemoryRepository is an in-memory Repository for mock mode and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	assets map[string]store.Asset // keyed by asset ID
	deps   map[string]store.AssetDependency
	debt   map[string][]store.TechDebtFinding // keyed by tenant|asset
	recs   map[string]store.Recommendation    // keyed by tenant|asset
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		assets: make(map[string]store.Asset),
		deps:   make(map[string]store.AssetDependency),
		debt:   make(map[string][]store.TechDebtFinding),
		recs:   make(map[string]store.Recommendation),
	}
}

func perAssetKey(tenantID, assetID string) string {
	return tenantID + "|" + assetID
}

// UpsertAssets writes assets keyed on (tenant, hostname, ip), matching the
// Postgres unique constraint.
func (m *MemoryRepository) UpsertAssets(_ context.Context, assets []store.Asset) ([]store.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]store.Asset, 0, len(assets))
	for _, a := range assets {
		existingID := ""
		for id, cur := range m.assets {
			if cur.TenantID == a.TenantID && cur.Hostname == a.Hostname && cur.IPAddress == a.IPAddress {
				existingID = id
				break
			}
		}
		now := time.Now().UTC()
		if existingID == "" {
			a.AssetID = uuid.New().String()
			a.CreatedAt = now
		} else {
			a.AssetID = existingID
			a.CreatedAt = m.assets[existingID].CreatedAt
		}
		a.UpdatedAt = now
		m.assets[a.AssetID] = a
		out = append(out, a)
	}
	return out, nil
}

func (m *MemoryRepository) GetAsset(_ context.Context, tenantID, assetID string) (*store.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[assetID]
	if !ok || a.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) ListAssets(_ context.Context, tenantID string, filter AssetFilter) ([]store.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var assets []store.Asset
	for _, a := range m.assets {
		if a.TenantID != tenantID {
			continue
		}
		if filter.Environment != "" && a.Environment != filter.Environment {
			continue
		}
		if filter.Application != "" && a.Application != filter.Application {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.BatchID != "" && (a.BatchID == nil || *a.BatchID != filter.BatchID) {
			continue
		}
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Hostname < assets[j].Hostname })
	return assets, nil
}

func (m *MemoryRepository) SaveDependencies(_ context.Context, deps []store.AssetDependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range deps {
		key := fmt.Sprintf("%s|%s|%s|%s", d.TenantID, d.SourceAssetID, d.TargetAssetID, d.DepType)
		if _, ok := m.deps[key]; ok {
			continue
		}
		d.DependencyID = uuid.New().String()
		d.CreatedAt = time.Now().UTC()
		m.deps[key] = d
	}
	return nil
}

func (m *MemoryRepository) ListDependencies(_ context.Context, tenantID string) ([]store.AssetDependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var deps []store.AssetDependency
	for _, d := range m.deps {
		if d.TenantID == tenantID {
			deps = append(deps, d)
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].CreatedAt.Before(deps[j].CreatedAt) })
	return deps, nil
}

func (m *MemoryRepository) ReplaceTechDebtFindings(_ context.Context, tenantID, assetID string, findings []store.TechDebtFinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]store.TechDebtFinding, 0, len(findings))
	for _, f := range findings {
		f.FindingID = uuid.New().String()
		f.TenantID = tenantID
		f.AssetID = assetID
		f.CreatedAt = time.Now().UTC()
		stored = append(stored, f)
	}
	m.debt[perAssetKey(tenantID, assetID)] = stored
	return nil
}

func (m *MemoryRepository) ListTechDebtFindings(_ context.Context, tenantID string) ([]store.TechDebtFinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var findings []store.TechDebtFinding
	for key, fs := range m.debt {
		if len(key) >= len(tenantID) && key[:len(tenantID)] == tenantID {
			findings = append(findings, fs...)
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Score > findings[j].Score })
	return findings, nil
}

func (m *MemoryRepository) ReplaceRecommendation(_ context.Context, rec store.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.RecommendationID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()
	m.recs[perAssetKey(rec.TenantID, rec.AssetID)] = rec
	return nil
}

func (m *MemoryRepository) ListRecommendations(_ context.Context, tenantID string) ([]store.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []store.Recommendation
	for _, r := range m.recs {
		if r.TenantID == tenantID {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Readiness > recs[j].Readiness })
	return recs, nil
}
