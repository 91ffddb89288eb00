package tracking

import (
	"testing"

	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
)

func TestVendorCall(t *testing.T) {
	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"VC 1234567 opened", "1234567", true},
		{"1234567", "1234567", true},
		{"ref 12345678", "", false},
		{"none", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := VendorCall(tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
		assert.Equal(t, tt.ok, ok, tt.ref)
	}
}

func TestUPSOrderNumbers(t *testing.T) {
	text := "shipped 112345678 and 123456789, again 112345678; not 132345678 or 1123456789"
	assert.Equal(t, []string{"112345678", "123456789"}, UPSOrderNumbers(text))
	assert.Empty(t, UPSOrderNumbers(""))
}

func TestCarrierPatterns(t *testing.T) {
	assert.True(t, IsUPS("1Z999AA10123456784"))
	assert.True(t, IsUPS("1z 999aa1-0123456784"))
	assert.False(t, IsUPS("1Z999AA1012345678"))
	assert.False(t, IsUPS("not available yet"))

	assert.True(t, IsFedEx("123456789012"))
	assert.True(t, IsFedEx("123456789012345"))
	assert.True(t, IsFedEx("12345678901234567890"))
	assert.True(t, IsFedEx("9612345678901234567890"))
	assert.False(t, IsFedEx("1234567890123"))
	assert.False(t, IsFedEx("1Z999AA10123456784"))
}

func TestTrackingNumbers(t *testing.T) {
	assert.Equal(t, []string{"414152235843", "414152235854"}, TrackingNumbers("414152235843-414152235854"))
	assert.Equal(t, []string{"1Z999AA10123456784", "123456789012"}, TrackingNumbers("1Z999AA10123456784; 123456789012"))
	assert.Empty(t, TrackingNumbers(schema.TrackingNone))
}

func TestTrackingValue(t *testing.T) {
	tests := []struct {
		name string
		ts   schema.TicketSummary
		want string
	}{
		{
			name: "latest pack shipped",
			ts:   schema.TicketSummary{AllPackNumbers: "0, 55", AllTrackingStatuses: "NP, 414152235843", AllBins: "NoBin, B1"},
			want: "414152235843",
		},
		{
			name: "ups number",
			ts:   schema.TicketSummary{AllPackNumbers: "55", AllTrackingStatuses: "1Z999AA10123456784", AllBins: "B1"},
			want: "1Z999AA10123456784",
		},
		{
			name: "several numbers on latest pack",
			ts:   schema.TicketSummary{AllPackNumbers: "55", AllTrackingStatuses: "414152235843; 414152235854", AllBins: "B1"},
			want: "414152235843-414152235854",
		},
		{
			name: "latest pack zero",
			ts:   schema.TicketSummary{AllPackNumbers: "55, 0", AllTrackingStatuses: "414152235843, NP", AllBins: "B1, B2", CallText: "ups 112345678"},
			want: schema.TrackingNone,
		},
		{
			name: "pack awaiting tracking",
			ts:   schema.TicketSummary{AllPackNumbers: "55", AllTrackingStatuses: "AT", AllBins: "B1"},
			want: schema.TrackingPackPending,
		},
		{
			name: "ups orders without statuses",
			ts:   schema.TicketSummary{AllPackNumbers: "0", AllBins: "B1", CallText: "orders 112345678 and 123456789"},
			want: "123456789",
		},
		{
			name: "no bin ignores ups orders",
			ts:   schema.TicketSummary{AllPackNumbers: "0", AllBins: "NoBin", CallText: "orders 112345678"},
			want: schema.TrackingNotAvailable,
		},
		{
			name: "empty ticket",
			want: schema.TrackingNotAvailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrackingValue(tt.ts))
		})
	}
}

func TestLatestParts(t *testing.T) {
	all := "(P1 - Belt || P2 - Roller) (P3 - Sensor (rear) || P4 - Board ||  )"
	assert.Equal(t, []string{"P3 - Sensor (rear)", "P4 - Board"}, LatestParts(all))
	assert.Equal(t, []string{"P1 - Belt"}, LatestParts("(P1 - Belt)"))
	assert.Empty(t, LatestParts(""))
	assert.Empty(t, LatestParts("no groups"))
	assert.Empty(t, LatestParts("(unclosed"))
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("1Z999AA10123456784", "shipped via 1z999aa10123456784", ""))
	assert.True(t, Match("414152235843", "", "tracking 414152235843 attached"))
	assert.False(t, Match("414152235843", "other", "notes"))
	assert.False(t, Match(schema.TrackingNotAvailable, schema.TrackingNotAvailable, ""))
	assert.False(t, Match("", "anything", "anything"))
}

func TestPlaceholder(t *testing.T) {
	for _, v := range []string{"", schema.TrackingNotAvailable, schema.TrackingNone, schema.TrackingPackPending} {
		assert.True(t, Placeholder(v), v)
	}
	assert.False(t, Placeholder("414152235843"))
}
