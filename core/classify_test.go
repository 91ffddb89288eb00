package core

import (
	"testing"

	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
)

func TestIsRecycler(t *testing.T) {
	tests := []struct {
		id       string
		expected bool
	}{
		{"N4R-1234", true},
		{"n9r5678", true},
		{"N7F00", true},
		{"rf-22", true},
		{"  N4R-1 ", false},
		{"N4R-1 ", true},
		{"NSS-100", false},
		{"XN4R", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRecycler(tt.id))
		})
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, schema.CategoryRecyclers, CategoryOf("RF100"))
	assert.Equal(t, schema.CategorySmartSafes, CategoryOf("SS100"))
	assert.Equal(t, schema.CategorySmartSafes, CategoryOf(""))
}

func TestFilterBatch(t *testing.T) {
	batch := schema.DedupedBatch{
		"A": {ServiceCallID: "A", EquipmentID: "N4R-1"},
		"B": {ServiceCallID: "B", EquipmentID: "SAFE-2"},
		"C": {ServiceCallID: "C", EquipmentID: ""},
		"D": {ServiceCallID: "D", EquipmentID: "rf9"},
	}

	recyclers := FilterBatch(batch, schema.CategoryRecyclers)
	safes := FilterBatch(batch, schema.CategorySmartSafes)

	assert.ElementsMatch(t, []string{"A", "D"}, keys(recyclers))
	assert.ElementsMatch(t, []string{"B", "C"}, keys(safes))
	assert.Len(t, recyclers, len(batch)-len(safes), "categories partition the batch")
	assert.Empty(t, FilterBatch(nil, schema.CategoryRecyclers))
}

func keys(b schema.DedupedBatch) []string {
	out := make([]string, 0, len(b))
	for id := range b {
		out = append(out, id)
	}
	return out
}
