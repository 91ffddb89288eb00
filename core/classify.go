package core

import (
	"strings"

	"github.com/huangsam/callstat/schema"
)

// recyclerPrefixes are the equipment ID prefixes of recycler models.
var recyclerPrefixes = []string{"N4R", "N9R", "N7F", "RF"}

// IsRecycler reports whether an equipment ID belongs to a recycler.
// Matching is case-insensitive and anchored at the first byte, so padded,
// empty or unknown IDs are smart safes.
func IsRecycler(equipmentID string) bool {
	id := strings.ToUpper(equipmentID)
	for _, p := range recyclerPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// CategoryOf returns the category of an equipment ID.
func CategoryOf(equipmentID string) schema.Category {
	if IsRecycler(equipmentID) {
		return schema.CategoryRecyclers
	}
	return schema.CategorySmartSafes
}

// FilterBatch returns the part of a batch that belongs to the category.
func FilterBatch(batch schema.DedupedBatch, category schema.Category) schema.DedupedBatch {
	out := make(schema.DedupedBatch)
	for id, r := range batch {
		if CategoryOf(r.EquipmentID) == category {
			out[id] = r
		}
	}
	return out
}
