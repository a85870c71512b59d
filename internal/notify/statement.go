package notify

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/srizd/clinishare/backend/internal/domain"
)

// RewardStatement renders a one-page PDF receipt for a settled reward.
func RewardStatement(reward domain.RewardRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Reward Statement")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Reward ID", reward.ID},
		{"Type", string(reward.Type)},
		{"Recipient", reward.Recipient},
		{"Amount", reward.Amount.String()},
		{"Status", string(reward.Status)},
		{"Transaction", reward.TransactionHash},
	}
	if reward.ProcessedAt != nil {
		rows = append(rows, [2]string{"Settled at", reward.ProcessedAt.UTC().Format(time.RFC3339)})
	}

	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf(
		"Amounts are denominated in octas (1 APT = %d octas). This statement was generated automatically.",
		domain.OctasPerAPT,
	), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
