package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/piwi3910/FabriCut/internal/model"
)

// BundleTicket is the data printed on, and encoded into the QR code of, a
// bundle ticket.
type BundleTicket struct {
	BundleNumber  string         `json:"bundle_number"`
	BundleID      string         `json:"bundle_id"`
	LayPlanID     string         `json:"lay_plan_id"`
	PONumber      string         `json:"po_number,omitempty"`
	Sequence      int            `json:"sequence"`
	SizeBreakdown map[string]int `json:"sizes"`
	TotalPieces   int            `json:"total_pieces"`
}

// Ticket layout: 2 columns x 4 rows of 95 x 65 mm on A4 portrait.
const (
	ticketMarginTop  = 10.0
	ticketMarginLeft = 10.0
	ticketWidth      = 95.0
	ticketHeight     = 65.0
	ticketCols       = 2
	ticketRows       = 4
	ticketsPerPage   = ticketCols * ticketRows
	qrSize           = 35.0
	ticketPadding    = 4.0
)

// TicketsFor builds one ticket per bundle, in sequence order.
func TicketsFor(order *model.Order, bundles []*model.CuttingBundle) []BundleTicket {
	tickets := make([]BundleTicket, 0, len(bundles))
	for _, b := range bundles {
		t := BundleTicket{
			BundleNumber:  b.BundleNumber,
			BundleID:      b.ID,
			LayPlanID:     b.LayPlanID,
			Sequence:      b.Sequence,
			SizeBreakdown: b.SizeBreakdown,
			TotalPieces:   b.TotalPieces,
		}
		if order != nil {
			t.PONumber = order.PONumber
		}
		tickets = append(tickets, t)
	}
	sort.SliceStable(tickets, func(i, j int) bool { return tickets[i].Sequence < tickets[j].Sequence })
	return tickets
}

// WriteBundleTickets renders the tickets as a PDF, each with a QR code that
// encodes the ticket as JSON so sewing lines can scan bundles in.
func WriteBundleTickets(w io.Writer, tickets []BundleTicket) error {
	if len(tickets) == 0 {
		return fmt.Errorf("no bundles to generate tickets for")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, t := range tickets {
		if i%ticketsPerPage == 0 {
			pdf.AddPage()
		}
		pos := i % ticketsPerPage
		x := ticketMarginLeft + float64(pos%ticketCols)*ticketWidth
		y := ticketMarginTop + float64(pos/ticketCols)*ticketHeight

		if err := renderTicket(pdf, x, y, t); err != nil {
			return fmt.Errorf("failed to render ticket %s: %w", t.BundleNumber, err)
		}
	}

	return pdf.Output(w)
}

// ExportBundleTickets writes the ticket PDF to path.
func ExportBundleTickets(path string, tickets []BundleTicket) error {
	return writeFile(path, func(w io.Writer) error { return WriteBundleTickets(w, tickets) })
}

func renderTicket(pdf *fpdf.Fpdf, x, y float64, t BundleTicket) error {
	// Cutting guide
	pdf.SetDrawColor(180, 180, 180)
	pdf.SetLineWidth(0.1)
	pdf.SetDashPattern([]float64{1, 1}, 0)
	pdf.Rect(x, y, ticketWidth, ticketHeight, "D")
	pdf.SetDashPattern([]float64{}, 0)

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	imgName := fmt.Sprintf("qr_%s_%d", t.BundleNumber, t.Sequence)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(png))
	pdf.ImageOptions(imgName, x+ticketWidth-qrSize-ticketPadding, y+ticketPadding, qrSize, qrSize, false, opts, 0, "")

	textX := x + ticketPadding
	textW := ticketWidth - qrSize - 3*ticketPadding

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetXY(textX, y+ticketPadding)
	pdf.CellFormat(textW, 6, fit(pdf, t.BundleNumber, textW), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(textX, y+ticketPadding+7)
	if t.PONumber != "" {
		pdf.CellFormat(textW, 4, "PO "+t.PONumber, "", 1, "L", false, 0, "")
	}
	pdf.SetXY(textX, y+ticketPadding+11)
	pdf.CellFormat(textW, 4, fmt.Sprintf("Bundle #%d", t.Sequence), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(textX, y+ticketPadding+17)
	pdf.CellFormat(textW, 8, fmt.Sprintf("%d pcs", t.TotalPieces), "", 1, "L", false, 0, "")

	// Size grid under the QR code
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(textX, y+ticketPadding+qrSize+3)
	pdf.CellFormat(ticketWidth-2*ticketPadding, 4, "Sizes: "+sizeSummary(t.SizeBreakdown), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(textX, y+ticketHeight-ticketPadding-3)
	pdf.CellFormat(ticketWidth-2*ticketPadding, 3, "Lay plan "+t.LayPlanID, "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	return nil
}

// sizeSummary lists sizes alphabetically, e.g. "L:10 M:10".
func sizeSummary(sizes map[string]int) string {
	keys := make([]string, 0, len(sizes))
	for k, v := range sizes {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, sizes[k])
	}
	return strings.Join(parts, " ")
}

// fit truncates text with an ellipsis until it fits width.
func fit(pdf *fpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	for len(text) > 0 && pdf.GetStringWidth(text+"...") > width {
		text = text[:len(text)-1]
	}
	return text + "..."
}
