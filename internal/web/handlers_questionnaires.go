package web

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"ai-force-assess/internal/questionnaire"
	"ai-force-assess/internal/store"
)

func (s *server) handleGetQuestionnaire(c *gin.Context) {
	ctx := c.Request.Context()
	tid := tenantID(c)
	qID := c.Param("qID")

	q, err := s.orch.Store().GetQuestionnaire(ctx, tid, qID)
	if err != nil {
		writeError(c, err)
		return
	}
	questions, err := questionnaire.ParseQuestions(q)
	if err != nil {
		writeError(c, err)
		return
	}
	responses, err := s.orch.Store().ListQuestionnaireResponses(ctx, tid, qID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"questionnaire": q,
		"questions":     questions,
		"responses":     responses,
		"completion":    questionnaire.Completion(questions, responses),
	})
}

type responseRequest struct {
	QuestionID string          `json:"question_id" binding:"required"`
	Answer     json.RawMessage `json:"answer" binding:"required"`
	AnsweredBy string          `json:"answered_by"`
}

func (s *server) handleSaveResponse(c *gin.Context) {
	var req responseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.AnsweredBy == "" {
		req.AnsweredBy = "user"
	}

	ctx := c.Request.Context()
	tid := tenantID(c)
	qID := c.Param("qID")

	q, err := s.orch.Store().GetQuestionnaire(ctx, tid, qID)
	if err != nil {
		writeError(c, err)
		return
	}
	questions, err := questionnaire.ParseQuestions(q)
	if err != nil {
		writeError(c, err)
		return
	}

	var matched *questionnaire.Question
	for i := range questions {
		if questions[i].QuestionID == req.QuestionID {
			matched = &questions[i]
			break
		}
	}
	if matched == nil {
		c.JSON(404, gin.H{"error": "unknown question: " + req.QuestionID})
		return
	}

	resp := &store.QuestionnaireResponse{
		TenantID:        tid,
		QuestionnaireID: qID,
		QuestionID:      req.QuestionID,
		Answer:          store.JSONBRaw(req.Answer),
		AnsweredBy:      req.AnsweredBy,
	}
	if matched.AssetID != "" {
		assetID := matched.AssetID
		resp.AssetID = &assetID
	}
	if err := s.orch.Store().SaveQuestionnaireResponse(ctx, resp); err != nil {
		writeError(c, err)
		return
	}

	responses, err := s.orch.Store().ListQuestionnaireResponses(ctx, tid, qID)
	if err != nil {
		writeError(c, err)
		return
	}
	completion := questionnaire.Completion(questions, responses)
	if completion < 1 && q.Status == questionnaire.StatusOpen {
		if err := s.orch.Store().UpdateQuestionnaireStatus(ctx, tid, qID, questionnaire.StatusInProgress); err != nil {
			writeError(c, err)
			return
		}
	}

	c.JSON(200, gin.H{
		"completion": completion,
		"answered":   len(responses),
		"questions":  len(questions),
	})
}
