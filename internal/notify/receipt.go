package notify

import (
	"bytes"
	"html/template"
	"time"

	"github.com/pkg/errors"

	"github.com/AydinMate/wedding-admin/internal/orders"
)

const dateLayout = "Monday, Jan 2, 2006"

type ReceiptLine struct {
	Name     string
	Colour   string
	Size     string
	ImageURL string
	Price    string
}

// Receipt is the data of one hire receipt email.
type Receipt struct {
	BusinessName string
	OrderID      string
	InvoiceDate  string
	HireDate     string
	IsDelivery   bool
	CustomerName string
	Line1        string
	Line2        string
	City         string
	State        string
	PostalCode   string
	Country      string
	Lines        []ReceiptLine
	Total        string
	DropoffParts []string
	PickupParts  []string
	Year         int
}

type ReceiptOptions struct {
	BusinessName  string
	PickupAddress []string
	Location      *time.Location
	Now           time.Time
}

// BuildReceipt lists one line per order item, so a product hired twice shows twice.
func BuildReceipt(n orders.Notification, o orders.Order, items []orders.OrderItem, products []orders.ProductDetail, opt ReceiptOptions) Receipt {
	loc := opt.Location
	if loc == nil {
		loc = time.UTC
	}
	byID := make(map[string]orders.ProductDetail, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	r := Receipt{
		BusinessName: opt.BusinessName,
		OrderID:      o.ID,
		InvoiceDate:  opt.Now.In(loc).Format(dateLayout),
		HireDate:     o.HireDate.In(loc).Format(dateLayout),
		IsDelivery:   o.IsDelivery,
		CustomerName: n.CustomerName,
		Line1:        n.Line1,
		Line2:        n.Line2,
		City:         n.City,
		State:        n.State,
		PostalCode:   n.PostalCode,
		Country:      n.Country,
		Total:        o.Price.StringFixed(2),
		PickupParts:  opt.PickupAddress,
		Year:         opt.Now.In(loc).Year(),
	}
	if o.IsDelivery {
		r.DropoffParts = o.DropoffParts()
	}
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		r.Lines = append(r.Lines, ReceiptLine{
			Name:     p.Name,
			Colour:   p.Colour,
			Size:     p.Size,
			ImageURL: p.ImageURL,
			Price:    p.Price.StringFixed(2),
		})
	}
	return r
}

func (r Receipt) Subject() string {
	if r.BusinessName == "" {
		return "Hire Receipt"
	}
	return r.BusinessName + " Hire Receipt"
}

func RenderReceipt(r Receipt) (string, error) {
	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, r); err != nil {
		return "", errors.Wrap(err, "render receipt")
	}
	return buf.String(), nil
}

var receiptTmpl = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="font-family:'Helvetica Neue',Helvetica,Arial,sans-serif;background:#ffffff">
<div style="margin:0 auto;padding:20px 0 48px;width:660px">
  <h1 style="font-size:32px;font-weight:300;color:#888888;text-align:right">Hire Receipt</h1>
  <table style="width:100%;background:#fafafa;font-size:12px;border-collapse:collapse">
    <tr>
      <td>
        <p><small>HIRE TYPE</small><br>{{if .IsDelivery}}DELIVERY{{else}}PICK UP{{end}}</p>
        <p><small>INVOICE DATE</small><br>{{.InvoiceDate}}</p>
        <p><small>HIRE DATE</small><br>{{.HireDate}}</p>
        <p><small>ORDER ID</small><br><u>{{.OrderID}}</u></p>
      </td>
      <td>
        <p><small>BILLED TO</small><br>{{.CustomerName}}<br>{{.Line1}}{{if .Line2}}<br>{{.Line2}}{{end}}<br>{{.City}}, {{.State}} {{.PostalCode}}<br>{{.Country}}</p>
      </td>
    </tr>
  </table>
  <h2 style="font-size:14px;font-weight:500;background:#fafafa;padding-left:10px">Hired Products</h2>
  <table style="width:100%;font-size:12px">
    {{range .Lines}}<tr>
      <td style="width:64px">{{if .ImageURL}}<img src="{{.ImageURL}}" width="64" height="64" alt="{{.Name}}">{{end}}</td>
      <td style="padding-left:22px"><b>{{.Name}}</b><br>Colour: {{.Colour}}<br>Size: {{.Size}}</td>
      <td style="text-align:right;font-weight:600">${{.Price}}</td>
    </tr>
    {{end}}
  </table>
  <hr>
  <p style="text-align:right"><small>TOTAL</small> <b style="font-size:16px">${{.Total}}</b></p>
  <hr>
  {{if .IsDelivery}}
  <h3 style="text-align:center;font-size:24px;font-weight:500">Your order will be delivered to:</h3>
  <p style="text-align:center">{{range .DropoffParts}}<b>{{.}}</b><br>{{end}}</p>
  <p style="font-size:12px;color:#666666">Kindly be informed that your delivery is scheduled for 12PM on {{.HireDate}}. Items are expected to be ready for pickup by 10AM the following day. If you require any adjustments to this schedule, please reach out to our support team in advance.</p>
  {{else}}
  <h3 style="text-align:center;font-size:24px;font-weight:500">Please Pick Up From:</h3>
  <p style="text-align:center">{{range .PickupParts}}<b>{{.}}</b><br>{{end}}</p>
  <p style="font-size:12px;color:#666666">Kindly be informed that your pickup is scheduled for 12PM on {{.HireDate}}. Items should be returned by 10AM the subsequent day to avoid extra charges. If you require any adjustments to this schedule, please reach out to our support team in advance.</p>
  {{end}}
  <p style="text-align:center;font-size:12px;color:#666666">Copyright &copy; {{.Year}} {{.BusinessName}}. All rights reserved.</p>
</div>
</body>
</html>
`))
