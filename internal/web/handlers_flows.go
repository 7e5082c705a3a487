package web

import (
	"time"

	"github.com/gin-gonic/gin"

	"ai-force-assess/internal/orchestration"
)

type createFlowRequest struct {
	FlowType string `json:"flow_type" binding:"required"`
	FlowName string `json:"flow_name"`
}

type actionRequest struct {
	Reason string `json:"reason"`
}

func (s *server) handleCreateFlow(c *gin.Context) {
	var req createFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if !orchestration.ValidFlowType(req.FlowType) {
		c.JSON(400, gin.H{"error": "unknown flow type: " + req.FlowType})
		return
	}

	flow, err := s.orch.CreateFlow(c.Request.Context(), tenantID(c), req.FlowType, req.FlowName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(201, flow)
}

func (s *server) handleListFlows(c *gin.Context) {
	flowType := c.Query("flow_type")
	if flowType != "" && !orchestration.ValidFlowType(flowType) {
		c.JSON(400, gin.H{"error": "unknown flow type: " + flowType})
		return
	}

	flows, err := s.orch.ListFlows(c.Request.Context(), tenantID(c), flowType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"flows": flows, "count": len(flows)})
}

func (s *server) handleGetFlow(c *gin.Context) {
	flow, err := s.orch.GetFlow(c.Request.Context(), tenantID(c), c.Param("flowID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, flow)
}

func (s *server) handleFlowHistory(c *gin.Context) {
	history, err := s.orch.GetHistory(c.Request.Context(), tenantID(c), c.Param("flowID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"history": history, "count": len(history)})
}

func (s *server) handleAdvanceFlow(c *gin.Context) {
	flow, err := s.orch.AdvancePhase(c.Request.Context(), tenantID(c), c.Param("flowID"), orchestration.ActorUser)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, flow)
}

func (s *server) handleCompletePhase(c *gin.Context) {
	var req actionRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "phase completed manually"
	}

	flow, err := s.orch.CompletePhase(c.Request.Context(), tenantID(c), c.Param("flowID"), orchestration.ActorUser, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, flow)
}

func (s *server) handleCancelFlow(c *gin.Context) {
	var req actionRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "cancelled via API"
	}

	flow, err := s.orch.CancelFlow(c.Request.Context(), tenantID(c), c.Param("flowID"), orchestration.ActorUser, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, flow)
}

func (s *server) handleResumeFlow(c *gin.Context) {
	flow, err := s.orch.ResumeFlow(c.Request.Context(), tenantID(c), c.Param("flowID"), orchestration.ActorUser)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, flow)
}

func (s *server) handleDeleteFlow(c *gin.Context) {
	if err := s.orch.Store().DeleteFlow(c.Request.Context(), tenantID(c), c.Param("flowID")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"deleted": true})
}

func (s *server) handleCleanupFlows(c *gin.Context) {
	retention := s.cfg.FlowRetention
	if v := c.Query("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			c.JSON(400, gin.H{"error": "invalid older_than duration: " + err.Error()})
			return
		}
		retention = d
	}

	removed, err := s.orch.CleanupStaleFlows(c.Request.Context(), tenantID(c), retention)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"removed": removed})
}

func (s *server) handleFlowMetrics(c *gin.Context) {
	c.JSON(200, s.orch.Metrics())
}
