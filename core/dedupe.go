package core

import "github.com/huangsam/callstat/schema"

// Deduplicate collapses a raw batch into one record per service call.
// Among duplicates the record with the highest insertion ID wins.
func Deduplicate(records []schema.SnapshotRecord) schema.DedupedBatch {
	out := make(schema.DedupedBatch, len(records))
	for _, r := range records {
		if cur, ok := out[r.ServiceCallID]; ok && cur.ID >= r.ID {
			continue
		}
		out[r.ServiceCallID] = r
	}
	return out
}

// Records returns the batch's records in no particular order.
func Records(batch schema.DedupedBatch) []schema.SnapshotRecord {
	out := make([]schema.SnapshotRecord, 0, len(batch))
	for _, r := range batch {
		out = append(out, r)
	}
	return out
}
