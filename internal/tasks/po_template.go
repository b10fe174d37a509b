package tasks

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"

	"github.com/Manzp111/Procured-Payment/internal/models"
)

var poTemplate = template.Must(template.New("purchase_order").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Purchase Order {{.ID}}</title></head>
<body>
  <h1>Purchase Order #{{.ID}}</h1>
  <p><strong>{{.Title}}</strong></p>
  <p>{{.Description}}</p>
  <p>Vendor: {{.VendorName}}<br>{{.VendorAddress}}</p>
  <table border="1" cellpadding="4" cellspacing="0">
    <tr><th>Item</th><th>Quantity</th><th>Unit Price</th><th>Total</th></tr>
    {{range .Items}}
    <tr>
      <td>{{.Name}}</td>
      <td>{{.Quantity}}</td>
      <td>{{.Price}}</td>
      <td>{{.Total}}</td>
    </tr>
    {{end}}
  </table>
  <p>Amount: {{.Amount}} {{.Currency}}</p>
  {{if .PaymentTerms}}<p>Payment terms: {{.PaymentTerms}}</p>{{end}}
</body>
</html>
`))

type poLine struct {
	Name     string
	Quantity int
	Price    string
	Total    string
}

type poView struct {
	ID            string
	Title         string
	Description   string
	VendorName    string
	VendorAddress string
	Items         []poLine
	Amount        string
	Currency      string
	PaymentTerms  string
}

func renderPurchaseOrder(pr *models.PurchaseRequest) ([]byte, error) {
	items, err := pr.ExtractedItems()
	if err != nil {
		return nil, err
	}

	view := poView{
		ID:            pr.ID.String(),
		Title:         pr.Title,
		Description:   pr.Description,
		VendorName:    pr.VendorName,
		VendorAddress: pr.VendorAddress,
		Amount:        pr.Amount.StringFixed(2),
		Currency:      pr.Currency,
		PaymentTerms:  pr.PaymentTerms,
	}
	for _, item := range items {
		total := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Items = append(view.Items, poLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price.StringFixed(2),
			Total:    total.StringFixed(2),
		})
	}

	var buf bytes.Buffer
	if err := poTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
