package cmdb

import (
	"context"
	"log"
	"strconv"
	"strings"

	"ai-force-assess/internal/agent"
	"ai-force-assess/internal/store"
)

// Mapping methods in order of trust.
const (
	MethodExact      = "exact"
	MethodNormalized = "normalized"
	MethodSynonym    = "synonym"
	MethodCrew       = "crew"
	MethodManual     = "manual"
)

// crewConfidenceFloor drops crew suggestions below this confidence.
const crewConfidenceFloor = 0.5

// Mapper produces field mappings for an extract's columns. The crew is
// optional; without one, unmapped columns stay unmapped.
type Mapper struct {
	crew *agent.FieldMappingCrew
}

// NewMapper builds a Mapper. crew may be nil.
func NewMapper(crew *agent.FieldMappingCrew) *Mapper {
	return &Mapper{crew: crew}
}

// CrewConsult describes one call to the mapping crew: which columns the
// dictionary could not resolve, the prompt size, and the crew error if the
// call failed (affected columns then fall back to manual).
type CrewConsult struct {
	Columns     []string
	PromptChars int
	Err         error
}

// SuggestMappings resolves every column of the extract: dictionary first
// (exact, normalized, synonym), then the crew for whatever is left. Columns
// nothing could resolve are returned with an empty canonical field so the
// operator can map them manually. The consult is nil when the dictionary
// covered everything or no crew is wired.
func (m *Mapper) SuggestMappings(ctx context.Context, tenantID, batchID string, extract *RawExtract) ([]store.FieldMapping, *CrewConsult, error) {
	var mappings []store.FieldMapping
	var unresolved []string

	for _, col := range extract.Columns {
		if field, method, ok := LookupField(col); ok {
			confidence := 1.0
			if method == MethodSynonym {
				confidence = 0.9
			}
			mappings = append(mappings, store.FieldMapping{
				TenantID:       tenantID,
				BatchID:        batchID,
				SourceColumn:   col,
				CanonicalField: field,
				Confidence:     confidence,
				Method:         method,
			})
			continue
		}
		unresolved = append(unresolved, col)
	}

	var consult *CrewConsult
	if len(unresolved) > 0 && m.crew != nil {
		samples := extract.SampleValues()
		consult = &CrewConsult{
			Columns:     unresolved,
			PromptChars: len(agent.FieldMappingUserPrompt(unresolved, samples)),
		}
		suggestions, err := m.crew.SuggestMappings(ctx, unresolved, samples)
		if err != nil {
			// Crew failure degrades to manual mapping, not a failed import.
			consult.Err = err
			log.Printf("field mapping crew unavailable, leaving %d columns unmapped: %v", len(unresolved), err)
		} else {
			byColumn := make(map[string]agent.FieldMappingSuggestion, len(suggestions))
			for _, s := range suggestions {
				byColumn[s.SourceColumn] = s
			}
			var stillUnresolved []string
			for _, col := range unresolved {
				s, ok := byColumn[col]
				if !ok || s.CanonicalField == "" || s.Confidence < crewConfidenceFloor || !isCanonical(s.CanonicalField) {
					stillUnresolved = append(stillUnresolved, col)
					continue
				}
				mappings = append(mappings, store.FieldMapping{
					TenantID:       tenantID,
					BatchID:        batchID,
					SourceColumn:   col,
					CanonicalField: s.CanonicalField,
					Confidence:     s.Confidence,
					Method:         MethodCrew,
				})
			}
			unresolved = stillUnresolved
		}
	}

	for _, col := range unresolved {
		mappings = append(mappings, store.FieldMapping{
			TenantID:     tenantID,
			BatchID:      batchID,
			SourceColumn: col,
			Method:       MethodManual,
		})
	}
	return mappings, consult, nil
}

func isCanonical(field string) bool {
	for _, f := range CanonicalFields {
		if f == field {
			return true
		}
	}
	return false
}

// ApplyMappings converts raw rows into assets using the confirmed mappings.
// Unmapped columns land in the asset's attributes map so no source data is
// lost. Completeness is the fraction of canonical fields populated.
func ApplyMappings(tenantID, batchID string, extract *RawExtract, mappings []store.FieldMapping) []store.Asset {
	fieldFor := make(map[string]string, len(mappings))
	for _, fm := range mappings {
		if fm.CanonicalField != "" {
			fieldFor[fm.SourceColumn] = fm.CanonicalField
		}
	}

	assets := make([]store.Asset, 0, len(extract.Rows))
	for _, row := range extract.Rows {
		a := store.Asset{
			TenantID:   tenantID,
			BatchID:    &batchID,
			Status:     "discovered",
			Attributes: store.JSONBMap{},
		}
		populated := 0
		for col, value := range row {
			value = strings.TrimSpace(value)
			field, mapped := fieldFor[col]
			if !mapped {
				if value != "" {
					a.Attributes[col] = value
				}
				continue
			}
			if value == "" {
				continue
			}
			if setField(&a, field, value) {
				populated++
			}
		}
		if a.Name == "" {
			a.Name = a.Hostname
		}
		a.Completeness = float64(populated) / float64(len(CanonicalFields))
		assets = append(assets, a)
	}
	return assets
}

// setField assigns one canonical field, coercing numeric values. Returns
// false when the value could not be applied.
func setField(a *store.Asset, field, value string) bool {
	switch field {
	case FieldName:
		a.Name = value
	case FieldHostname:
		a.Hostname = value
	case FieldIPAddress:
		a.IPAddress = value
	case FieldOS:
		a.OS = value
	case FieldOSVersion:
		a.OSVersion = value
	case FieldEnvironment:
		a.Environment = value
	case FieldApplication:
		a.Application = value
	case FieldOwner:
		a.Owner = value
	case FieldLocation:
		a.Location = value
	case FieldStatus:
		a.Status = value
	case FieldCPUCores:
		n, err := parseInt(value)
		if err != nil {
			return false
		}
		a.CPUCores = n
	case FieldMemoryMB:
		n, err := parseInt(value)
		if err != nil {
			return false
		}
		a.MemoryMB = n
	case FieldStorageGB:
		n, err := parseInt(value)
		if err != nil {
			return false
		}
		a.StorageGB = n
	default:
		return false
	}
	return true
}

// parseInt tolerates decimal notation like "4.0" that CMDB exports often
// carry for core counts.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
