package web

import (
	"github.com/gin-gonic/gin"

	"ai-force-assess/internal/orchestration"
)

// The unified-discovery routes are the fallback family the previous frontend
// generation calls. They operate on discovery master flows and answer with
// both the canonical snake_case fields and the legacy camelCase names, so
// either frontend reads them.

type legacyCreateFlowRequest struct {
	FlowName       string `json:"flow_name"`
	FlowNameCamel  string `json:"flowName"`
	ClientAccount  string `json:"client_account_id"`
	ClientAccountC string `json:"clientAccountId"`
}

func legacyFlowJSON(f *orchestration.Flow) gin.H {
	return gin.H{
		"flow_id":       f.FlowID,
		"flowId":        f.FlowID,
		"tenant_id":     f.TenantID,
		"tenantId":      f.TenantID,
		"flow_type":     f.FlowType,
		"flowType":      f.FlowType,
		"flow_name":     f.FlowName,
		"flowName":      f.FlowName,
		"current_phase": f.CurrentPhase,
		"currentPhase":  f.CurrentPhase,
		"status":        f.Status,
		"phase_state":   f.PhaseState,
		"phaseState":    f.PhaseState,
		"created_at":    f.CreatedAt,
		"createdAt":     f.CreatedAt,
		"updated_at":    f.UpdatedAt,
		"updatedAt":     f.UpdatedAt,
	}
}

func (s *server) handleLegacyCreateFlow(c *gin.Context) {
	var req legacyCreateFlowRequest
	_ = c.ShouldBindJSON(&req)
	name := req.FlowName
	if name == "" {
		name = req.FlowNameCamel
	}
	if name == "" {
		name = "unified discovery"
	}

	flow, err := s.orch.CreateFlow(c.Request.Context(), tenantID(c), string(orchestration.FlowDiscovery), name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(201, legacyFlowJSON(flow))
}

func (s *server) handleLegacyListFlows(c *gin.Context) {
	flows, err := s.orch.ListFlows(c.Request.Context(), tenantID(c), string(orchestration.FlowDiscovery))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(flows))
	for i := range flows {
		out = append(out, legacyFlowJSON(&flows[i]))
	}
	c.JSON(200, gin.H{"flows": out, "count": len(out)})
}

func (s *server) handleLegacyGetFlow(c *gin.Context) {
	flow, err := s.orch.GetFlow(c.Request.Context(), tenantID(c), c.Param("flowID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, legacyFlowJSON(flow))
}

func (s *server) handleLegacyAdvanceFlow(c *gin.Context) {
	flow, err := s.orch.AdvancePhase(c.Request.Context(), tenantID(c), c.Param("flowID"), orchestration.ActorUser)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, legacyFlowJSON(flow))
}
