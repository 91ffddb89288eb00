package iostore

import (
	"context"
	"testing"

	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketStore(t *testing.T) {
	tickets, err := NewTicketStore(schema.SQLiteBackend, tempDB(t, "tickets.db"), "")
	require.NoError(t, err)
	defer func() { _ = tickets.Close() }()
	ctx := context.Background()

	_, ok, err := tickets.LookupTicket(ctx, "1234567")
	require.NoError(t, err)
	assert.False(t, ok)

	summary := schema.TicketSummary{
		CallNumber:          "1234567",
		CaseNumber:          "C-1",
		CallText:            "order 112345678 shipped",
		AllPackNumbers:      "5001,5002",
		AllTrackingStatuses: "AT,SH",
		AllParts:            "(belt||sensor)",
	}
	require.NoError(t, tickets.UpsertTicket(ctx, summary))

	got, ok, err := tickets.LookupTicket(ctx, "1234567")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summary, got)

	// Upsert replaces
	summary.AllTrackingStatuses = "AT,SH,DL"
	require.NoError(t, tickets.UpsertTicket(ctx, summary))
	got, _, err = tickets.LookupTicket(ctx, "1234567")
	require.NoError(t, err)
	assert.Equal(t, "AT,SH,DL", got.AllTrackingStatuses)
}

func TestTicketStore_NoneBackend(t *testing.T) {
	tickets, err := NewTicketStore(schema.NoneBackend, "", "")
	require.NoError(t, err)
	_, ok, err := tickets.LookupTicket(context.Background(), "1234567")
	assert.NoError(t, err)
	assert.False(t, ok)
}
