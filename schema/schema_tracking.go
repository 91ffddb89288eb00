package schema

import "time"

// Tracking values written when no carrier number can be determined.
const (
	TrackingNotAvailable = "not available yet"
	TrackingNone         = "No Tracking"
	TrackingPackPending  = "Pack Created No Tracking yet"
)

// TicketSummary is the ticketing system's view of one vendor call.
type TicketSummary struct {
	CallNumber          string `json:"call_number"`
	CaseNumber          string `json:"case_number"`
	CallText            string `json:"call_text"`
	AllPackNumbers      string `json:"all_pack_numbers"`      // Comma separated, oldest first
	AllBins             string `json:"all_bins"`              // Comma separated, oldest first
	AllTrackingStatuses string `json:"all_tracking_statuses"` // Comma separated, oldest first
	AllParts            string `json:"all_parts"`
}

// TrackingResult is the enrichment written back to the snapshot source.
type TrackingResult struct {
	ServiceCallID  string    `json:"service_call_id"`
	PushedAt       time.Time `json:"pushed_at"`
	VendorCall     string    `json:"vendor_call"`
	TrackingNumber string    `json:"tracking_number"`
	Parts          []string  `json:"parts"`
	Match          bool      `json:"match"`
	CarrierStatus  string    `json:"carrier_status"`
	CheckedAt      time.Time `json:"checked_at"`
}

// EnrichSummary counts the outcome of one enrichment run.
type EnrichSummary struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
