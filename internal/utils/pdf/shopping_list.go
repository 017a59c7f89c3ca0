package pdf

import (
	"bytes"
	"fmt"

	"Foodgram-Backend/domain"

	"github.com/go-pdf/fpdf"
)

// RenderShoppingList writes one "name — total unit" line per aggregated
// ingredient and lets fpdf paginate when the page fills up.
func RenderShoppingList(items []domain.ShoppingListItem) (*bytes.Buffer, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, "Shopping list", "", 1, "L", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 12)
	for _, item := range items {
		line := fmt.Sprintf("%s — %d %s", item.Name, item.Total, item.MeasurementUnit)
		doc.CellFormat(0, 8, tr(line), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
