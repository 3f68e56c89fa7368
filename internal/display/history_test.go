package display_test

import (
	"fmt"
	"testing"

	"github.com/srg/plugmini/internal/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_KeepsOrder(t *testing.T) {
	h := display.NewHistory(16)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Add(display.Record{Text: fmt.Sprint(i)}))
	}

	records := h.Drain()
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprint(i), rec.Text, "records MUST drain oldest first")
	}
	assert.Zero(t, h.Overwritten())
}

func TestHistory_Overflow(t *testing.T) {
	const size = 4
	h := display.NewHistory(size)

	for i := 0; i < 20; i++ {
		require.NoError(t, h.Add(display.Record{Text: fmt.Sprint(i)}), "overflow MUST NOT fail the add")
	}

	records := h.Drain()
	require.NotEmpty(t, records)
	assert.LessOrEqual(t, len(records), size, "history MUST stay bounded")
	assert.Equal(t, "19", records[len(records)-1].Text, "newest record MUST survive")
	assert.Positive(t, h.Overwritten(), "overflow MUST be counted")
}
