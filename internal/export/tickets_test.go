package export

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/FabriCut/internal/model"
)

func testBundles() []*model.CuttingBundle {
	return []*model.CuttingBundle{
		{ID: "b2", LayPlanID: "lay-1", BundleNumber: "ACM-PO-4512-002", Sequence: 2,
			SizeBreakdown: map[string]int{"S": 10, "M": 10}, TotalPieces: 20},
		{ID: "b1", LayPlanID: "lay-1", BundleNumber: "ACM-PO-4512-001", Sequence: 1,
			SizeBreakdown: map[string]int{"S": 20}, TotalPieces: 20},
	}
}

func TestTicketsFor(t *testing.T) {
	order := &model.Order{ID: "order-1", PONumber: "PO-4512"}
	tickets := TicketsFor(order, testBundles())

	require.Len(t, tickets, 2)
	assert.Equal(t, "ACM-PO-4512-001", tickets[0].BundleNumber)
	assert.Equal(t, 1, tickets[0].Sequence)
	assert.Equal(t, "PO-4512", tickets[1].PONumber)
	assert.Equal(t, map[string]int{"S": 10, "M": 10}, tickets[1].SizeBreakdown)
}

func TestTicketsFor_NoOrder(t *testing.T) {
	tickets := TicketsFor(nil, testBundles())
	require.Len(t, tickets, 2)
	assert.Empty(t, tickets[0].PONumber)
}

func TestWriteBundleTickets(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBundleTickets(&buf, TicketsFor(&model.Order{PONumber: "PO-4512"}, testBundles()))

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWriteBundleTickets_MultiplePages(t *testing.T) {
	var bundles []*model.CuttingBundle
	for i := 1; i <= ticketsPerPage*2+1; i++ {
		bundles = append(bundles, &model.CuttingBundle{
			ID: fmt.Sprintf("b%d", i), LayPlanID: "lay-1", BundleNumber: fmt.Sprintf("GEN-PO-1-%03d", i), Sequence: i,
			SizeBreakdown: map[string]int{"L": 12}, TotalPieces: 12,
		})
	}
	path := filepath.Join(t.TempDir(), "tickets.pdf")
	require.NoError(t, ExportBundleTickets(path, TicketsFor(nil, bundles)))
}

func TestWriteBundleTickets_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteBundleTickets(&buf, nil))
}

func TestSizeSummary(t *testing.T) {
	assert.Equal(t, "L:10 M:10", sizeSummary(map[string]int{"M": 10, "L": 10, "S": 0}))
	assert.Equal(t, "", sizeSummary(nil))
}
