package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"ai-force-assess/internal/cmdb"
	"ai-force-assess/internal/store"
)

// handleCreateImport ingests a CMDB export. The payload is either a multipart
// upload under "file" or the raw CSV/JSON body. When a discovery flow ID is
// supplied the batch is attached and the auto-trigger takes the flow forward.
func (s *server) handleCreateImport(c *gin.Context) {
	data, sourceName, err := readImportPayload(c)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(400, gin.H{"error": "empty import payload"})
		return
	}

	format := c.Query("format")
	if format == "" {
		format = cmdb.DetectFormat(data)
	}
	extract, err := cmdb.Parse(format, bytes.NewReader(data))
	if err != nil {
		c.JSON(400, gin.H{"error": "failed to parse import: " + err.Error()})
		return
	}

	rowsJSON, err := json.Marshal(extract.Rows)
	if err != nil {
		writeError(c, err)
		return
	}

	tid := tenantID(c)
	batch := &store.ImportBatch{
		TenantID:    tid,
		SourceName:  sourceName,
		Format:      format,
		RecordCount: len(extract.Rows),
		Status:      "received",
		RawColumns:  store.JSONBStringArray(extract.Columns),
		RawRows:     store.JSONBRaw(rowsJSON),
	}
	flowID := c.Query("flow_id")
	if flowID != "" {
		batch.FlowID = &flowID
	}

	batchID, err := s.orch.Store().CreateImportBatch(c.Request.Context(), batch)
	if err != nil {
		writeError(c, err)
		return
	}

	if flowID != "" {
		if err := s.orch.Store().AttachBatchToFlow(c.Request.Context(), tid, flowID, batchID); err != nil {
			writeError(c, err)
			return
		}
		// The watch outlives the request on purpose.
		s.trigger.Watch(context.Background(), tid, flowID, batchID, nil)
	}

	c.JSON(201, batch)
}

func readImportPayload(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		return data, file.Filename, err
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", err
	}
	sourceName := c.Query("source_name")
	if sourceName == "" {
		sourceName = "inline-upload"
	}
	return data, sourceName, nil
}

func (s *server) handleGetImport(c *gin.Context) {
	batch, err := s.orch.Store().GetImportBatch(c.Request.Context(), tenantID(c), c.Param("batchID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, batch)
}

func (s *server) handleGetMappings(c *gin.Context) {
	mappings, err := s.orch.Store().GetFieldMappings(c.Request.Context(), tenantID(c), c.Param("batchID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"mappings": mappings, "count": len(mappings)})
}

type mappingUpdate struct {
	SourceColumn   string `json:"source_column" binding:"required"`
	CanonicalField string `json:"canonical_field"`
	Confirmed      bool   `json:"confirmed"`
}

// handleConfirmMappings lets a user confirm or override suggested mappings.
func (s *server) handleConfirmMappings(c *gin.Context) {
	var updates []mappingUpdate
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(400, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	tid := tenantID(c)
	batchID := c.Param("batchID")
	mappings := make([]store.FieldMapping, 0, len(updates))
	for _, u := range updates {
		mappings = append(mappings, store.FieldMapping{
			TenantID:       tid,
			BatchID:        batchID,
			SourceColumn:   u.SourceColumn,
			CanonicalField: u.CanonicalField,
			Confidence:     1.0,
			Method:         cmdb.MethodManual,
			Confirmed:      u.Confirmed,
		})
	}
	if err := s.orch.Store().SaveFieldMappings(c.Request.Context(), mappings); err != nil {
		writeError(c, err)
		return
	}

	saved, err := s.orch.Store().GetFieldMappings(c.Request.Context(), tid, batchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"mappings": saved, "count": len(saved)})
}

// handleCleanseBatch runs the rule cleansing pipeline on a batch outside any
// flow, for ad-hoc re-cleansing after mapping corrections.
func (s *server) handleCleanseBatch(c *gin.Context) {
	ctx := c.Request.Context()
	tid := tenantID(c)
	batchID := c.Param("batchID")

	batch, err := s.orch.Store().GetImportBatch(ctx, tid, batchID)
	if err != nil {
		writeError(c, err)
		return
	}
	mappings, err := s.orch.Store().GetFieldMappings(ctx, tid, batchID)
	if err != nil {
		writeError(c, err)
		return
	}

	extract := &cmdb.RawExtract{Columns: []string(batch.RawColumns)}
	if len(batch.RawRows) > 0 {
		if err := json.Unmarshal([]byte(batch.RawRows), &extract.Rows); err != nil {
			writeError(c, err)
			return
		}
	}

	assets := cmdb.ApplyMappings(tid, batchID, extract, mappings)
	cleansed, findings := cmdb.Cleanse(tid, batchID, assets)

	if err := s.orch.Store().SaveCleansingFindings(ctx, findings); err != nil {
		writeError(c, err)
		return
	}
	if err := s.orch.Store().UpdateImportBatchStatus(ctx, tid, batchID, "cleansed"); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{
		"cleansed_records": len(cleansed),
		"findings":         findings,
		"finding_count":    len(findings),
	})
}

func (s *server) handleListFindings(c *gin.Context) {
	findings, err := s.orch.Store().ListCleansingFindings(c.Request.Context(), tenantID(c), c.Param("batchID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"findings": findings, "count": len(findings)})
}
