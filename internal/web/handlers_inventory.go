package web

import (
	"github.com/gin-gonic/gin"

	"ai-force-assess/internal/inventory"
	"ai-force-assess/internal/store"
)

func (s *server) handleListAssets(c *gin.Context) {
	filter := inventory.AssetFilter{
		Environment: c.Query("environment"),
		Application: c.Query("application"),
		Status:      c.Query("status"),
		BatchID:     c.Query("batch_id"),
	}
	assets, err := s.orch.Store().Inventory().ListAssets(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"assets": assets, "count": len(assets)})
}

func (s *server) handleGetAsset(c *gin.Context) {
	asset, err := s.orch.Store().Inventory().GetAsset(c.Request.Context(), tenantID(c), c.Param("assetID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, asset)
}

func (s *server) handleAssetDependencies(c *gin.Context) {
	deps, err := s.orch.Store().Inventory().ListDependencies(c.Request.Context(), tenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	assetID := c.Param("assetID")
	var dependsOn, dependedOnBy []store.AssetDependency
	for _, d := range deps {
		switch assetID {
		case d.SourceAssetID:
			dependsOn = append(dependsOn, d)
		case d.TargetAssetID:
			dependedOnBy = append(dependedOnBy, d)
		}
	}
	c.JSON(200, gin.H{
		"asset_id":       assetID,
		"depends_on":     dependsOn,
		"depended_on_by": dependedOnBy,
	})
}

type dependencyRequest struct {
	SourceAssetID string `json:"source_asset_id" binding:"required"`
	TargetAssetID string `json:"target_asset_id" binding:"required"`
	DepType       string `json:"dep_type"`
}

func (s *server) handleSaveDependencies(c *gin.Context) {
	var reqs []dependencyRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(400, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	tid := tenantID(c)
	deps := make([]store.AssetDependency, 0, len(reqs))
	for _, r := range reqs {
		depType := r.DepType
		if depType == "" {
			depType = "network"
		}
		deps = append(deps, store.AssetDependency{
			TenantID:      tid,
			SourceAssetID: r.SourceAssetID,
			TargetAssetID: r.TargetAssetID,
			DepType:       depType,
		})
	}
	if err := s.orch.Store().Inventory().SaveDependencies(c.Request.Context(), deps); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(201, gin.H{"saved": len(deps)})
}

// graph loads the tenant's assets and dependency edges into a graph.
func (s *server) graph(c *gin.Context) (*inventory.DependencyGraph, error) {
	ctx := c.Request.Context()
	tid := tenantID(c)
	assets, err := s.orch.Store().Inventory().ListAssets(ctx, tid, inventory.AssetFilter{})
	if err != nil {
		return nil, err
	}
	deps, err := s.orch.Store().Inventory().ListDependencies(ctx, tid)
	if err != nil {
		return nil, err
	}
	return inventory.BuildGraph(assets, deps), nil
}

func (s *server) handleBlastRadius(c *gin.Context) {
	g, err := s.graph(c)
	if err != nil {
		writeError(c, err)
		return
	}

	assetID := c.Param("assetID")
	affected, err := g.BlastRadius(assetID)
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{
		"asset_id": assetID,
		"affected": affected,
		"count":    len(affected),
	})
}

func (s *server) handleMoveGroups(c *gin.Context) {
	g, err := s.graph(c)
	if err != nil {
		writeError(c, err)
		return
	}

	groups := g.MoveGroups()
	c.JSON(200, gin.H{
		"move_groups":  groups,
		"count":        len(groups),
		"cyclic_nodes": g.CyclicNodes(),
	})
}

func (s *server) handleTechDebt(c *gin.Context) {
	findings, err := s.orch.Store().Inventory().ListTechDebtFindings(c.Request.Context(), tenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if assetID := c.Query("asset_id"); assetID != "" {
		filtered := findings[:0]
		for _, f := range findings {
			if f.AssetID == assetID {
				filtered = append(filtered, f)
			}
		}
		findings = filtered
	}
	c.JSON(200, gin.H{"findings": findings, "count": len(findings)})
}

func (s *server) handleRecommendations(c *gin.Context) {
	recs, err := s.orch.Store().Inventory().ListRecommendations(c.Request.Context(), tenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"recommendations": recs, "count": len(recs)})
}
