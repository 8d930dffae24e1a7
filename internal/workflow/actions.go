package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"floorflow/backend/pkg/models"
)

// Payload is the decoded data of one action completion. Exactly one of the
// pointers is set, matching the completion type.
type Payload struct {
	Type        models.ActionType
	Scan        *models.ScanData
	Photo       *models.PhotoData
	Note        *models.NoteData
	Measurement *models.MeasurementData
	Approval    *models.ApprovalData
	Inspection  *models.InspectionData
}

// DecodeCompletion decodes the type-specific data of a completion. Missing
// data decodes to the zero payload of the type.
func DecodeCompletion(c models.ActionCompletion) (Payload, error) {
	p := Payload{Type: c.Type}
	data := c.Data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = []byte("{}")
	}

	var dst any
	switch c.Type {
	case models.ActionScan:
		p.Scan = &models.ScanData{}
		dst = p.Scan
	case models.ActionPhoto:
		p.Photo = &models.PhotoData{}
		dst = p.Photo
	case models.ActionNote:
		p.Note = &models.NoteData{}
		dst = p.Note
	case models.ActionMeasurement:
		p.Measurement = &models.MeasurementData{}
		dst = p.Measurement
	case models.ActionApproval:
		p.Approval = &models.ApprovalData{}
		dst = p.Approval
	case models.ActionInspection:
		p.Inspection = &models.InspectionData{}
		dst = p.Inspection
	default:
		return p, fmt.Errorf("unknown action type %q", c.Type)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return p, fmt.Errorf("decoding %s data for action %s: %w", c.Type, c.ID, err)
	}
	return p, nil
}

// Satisfies reports whether the payload fulfils the action definition.
// A rejected or unanswered approval never satisfies.
func Satisfies(def models.ActionDefinition, p Payload) bool {
	if p.Type != def.Type {
		return false
	}

	switch def.Type {
	case models.ActionScan:
		return p.Scan != nil && strings.TrimSpace(p.Scan.ScannedValue) != ""
	case models.ActionPhoto:
		return p.Photo != nil && (p.Photo.Captured || strings.TrimSpace(p.Photo.URL) != "")
	case models.ActionNote:
		return p.Note != nil && strings.TrimSpace(p.Note.Note) != ""
	case models.ActionMeasurement:
		return p.Measurement != nil && p.Measurement.Value != nil && unitMatches(def.Config, p.Measurement.Unit)
	case models.ActionApproval:
		return p.Approval != nil && p.Approval.Decision() == models.ApprovalApproved
	case models.ActionInspection:
		return p.Inspection != nil && inspectionComplete(def.Config, p.Inspection)
	}
	return false
}

// unitMatches accepts an omitted unit, which means the configured one.
func unitMatches(cfg *models.ActionConfig, unit string) bool {
	unit = strings.TrimSpace(unit)
	if cfg == nil || cfg.MeasurementUnit == "" || unit == "" {
		return true
	}
	return strings.EqualFold(unit, strings.TrimSpace(cfg.MeasurementUnit))
}

// inspectionComplete requires every configured checklist entry to be
// checked. Without a configured checklist one checked entry is enough.
func inspectionComplete(cfg *models.ActionConfig, data *models.InspectionData) bool {
	if cfg != nil && len(cfg.InspectionChecklist) > 0 {
		for i := range cfg.InspectionChecklist {
			if !data.Checklist[i] {
				return false
			}
		}
		return true
	}
	for _, checked := range data.Checklist {
		if checked {
			return true
		}
	}
	return false
}
