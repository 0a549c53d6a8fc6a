package handlers

import (
	"fmt"
	"net/http"

	"pharmacy-pos-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/mongo"
)

type ReportHandler struct {
	DB *mongo.Database
}

// ExportVerificationReport xuất báo cáo đối soát của một chứng từ ra Excel:
// one row per line with expected/scanned/accepted quantities, line totals
// and recorded discrepancies.
func (h *ReportHandler) ExportVerificationReport(c *gin.Context) {
	docHandler := &DocumentHandler{DB: h.DB}
	doc, ok := docHandler.findDocument(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Verification"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Line", "SKU", "Product", "Batch", "Barcode",
		"Expected", "Scanned", "Accepted", "Unit price", "Line total", "Discrepancies"}
	for i, hd := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, hd)
	}

	total := decimal.Zero
	for i, item := range doc.Items {
		row := i + 2
		price, err := models.ParsePrice(item.Price)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(item.QuantityAccepted)))
		total = total.Add(lineTotal)

		discSummary := ""
		for _, d := range item.Discrepancies {
			if d.Status != models.DiscrepancyStatusRecorded {
				continue
			}
			if discSummary != "" {
				discSummary += "; "
			}
			discSummary += fmt.Sprintf("%s x%d", d.Reason, d.Quantity)
		}

		values := []interface{}{i + 1, item.SKU, item.ProductName, item.BatchID, item.Barcode,
			item.QuantityExpected, item.QuantityScanned, item.QuantityAccepted,
			price.String(), lineTotal.String(), discSummary}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	totalRow := len(doc.Items) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Accepted total")
	f.SetCellValue(sheet, fmt.Sprintf("J%d", totalRow), total.String())

	buf, err := f.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	filename := fmt.Sprintf("verification-%s.xlsx", doc.DocumentID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
