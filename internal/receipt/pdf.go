// Package receipt renders tab bills as PDF and archives receipts of completed tabs.
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/utils"
)

type Options struct {
	RestaurantName string
	Currency       string
	Timezone       string
}

func formatMoney(value decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", currency, value.StringFixed(utils.CurrencyExponent(currency)))
}

// RenderBill draws the bill for one tab. Lines without a price are listed but not charged.
func RenderBill(order *orders.Order, opts Options) ([]byte, error) {
	loc := utils.LoadLocation(opts.Timezone)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, opts.RestaurantName, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Table %s", order.TableNumber), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Opened: %s", order.OrderTime.In(loc).Format("02 Jan 2006 15:04")), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Status: %s", order.Status), "", 1, "C", false, 0, "")
	if order.Notes != nil {
		pdf.MultiCell(0, 4, fmt.Sprintf("Notes: %s", *order.Notes), "", "C", false)
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(100, 6, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 6, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(0, 6, "Amount", "B", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, item := range order.Items {
		amount := "-"
		if item.UnitPrice.Valid && item.Quantity > 0 {
			amount = formatMoney(item.LineTotal(), opts.Currency)
		}
		pdf.CellFormat(100, 5, item.DishName, "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 5, fmt.Sprintf("%d", item.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(0, 5, amount, "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s", formatMoney(order.TotalPrice, opts.Currency)), "T", 1, "R", false, 0, "")

	if order.ProviderPaymentID != nil {
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Payment ref: %s", *order.ProviderPaymentID), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("Ref %s", order.PublicTrackingID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Printed %s", time.Now().In(loc).Format("02 Jan 2006 15:04")), "", 1, "L", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
