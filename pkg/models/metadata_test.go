package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValue_TaggedJSON(t *testing.T) {
	due := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	md := Metadata{
		"brand":   TextValue("Northwind"),
		"size":    NumberValue(42),
		"rush":    BoolValue(true),
		"ship_by": DateValue(due),
	}

	data, err := json.Marshal(md)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"brand":{"type":"text","value":"Northwind"}`)
	assert.Contains(t, string(data), `"ship_by":{"type":"date","value":"2026-03-14T00:00:00Z"}`)

	var decoded Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, md, decoded)
}

func TestMetadataValue_InfersBareScalars(t *testing.T) {
	var md Metadata
	err := json.Unmarshal([]byte(`{"sku":"TS-001","qty":12,"sample":false}`), &md)
	require.NoError(t, err)

	assert.Equal(t, TextValue("TS-001"), md["sku"])
	assert.Equal(t, NumberValue(12), md["qty"])
	assert.Equal(t, BoolValue(false), md["sample"])
}

func TestMetadataValue_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown kind": `{"type":"color","value":"red"}`,
		"bad date":     `{"type":"date","value":"yesterday"}`,
		"nested":       `{"a":1}`,
		"null":         `null`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var v MetadataValue
			assert.Error(t, json.Unmarshal([]byte(in), &v))
		})
	}
}

func TestMetadataValue_DateOnly(t *testing.T) {
	var v MetadataValue
	require.NoError(t, json.Unmarshal([]byte(`{"type":"date","value":"2026-01-02"}`), &v))
	assert.Equal(t, MetadataDate, v.Kind)
	assert.Equal(t, 2026, v.Date.Year())
}

func TestActionType_UnmarshalRejectsUnknown(t *testing.T) {
	var def ActionDefinition
	err := json.Unmarshal([]byte(`{"id":"a1","type":"signature","label":"Sign"}`), &def)
	assert.ErrorContains(t, err, "unknown action type")

	require.NoError(t, json.Unmarshal([]byte(`{"id":"a1","type":"photo","label":"Photo"}`), &def))
	assert.Equal(t, ActionPhoto, def.Type)
}

func TestApprovalDecision(t *testing.T) {
	yes, no := true, false
	assert.Equal(t, ApprovalUnanswered, ApprovalData{}.Decision())
	assert.Equal(t, ApprovalApproved, ApprovalData{Approved: &yes}.Decision())
	assert.Equal(t, ApprovalRejected, ApprovalData{Approved: &no}.Decision())
}

func TestItemClone_IsDeep(t *testing.T) {
	who := "op-1"
	it := &Item{ItemID: "ITM-1", Metadata: Metadata{"sku": TextValue("A")}, AssignedTo: &who}
	c := it.Clone()
	c.Metadata["sku"] = TextValue("B")
	*c.AssignedTo = "op-2"

	assert.Equal(t, TextValue("A"), it.Metadata["sku"])
	assert.Equal(t, "op-1", *it.AssignedTo)
}
