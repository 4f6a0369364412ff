package notifications

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/muhamadhazim/fishit-marketplace/pkg/mailer"
)

// InvoiceLine is one per-seller transaction listed in the confirmation.
type InvoiceLine struct {
	InvoiceNumber string
	Items         []InvoiceItem
	UniqueCode    int
	TotalTransfer int64
}

type InvoiceItem struct {
	Name     string
	Quantity int
	Subtotal int64
}

// Invoice is the order confirmation sent after checkout.
type Invoice struct {
	To         string
	Reference  string
	Lines      []InvoiceLine
	Total      int64
	PaymentURL *string
	Deadline   time.Time
}

var jakarta = time.FixedZone("WIB", 7*60*60)

func renderInvoice(inv Invoice, baseURL string) mailer.Message {
	var text, body strings.Builder
	fmt.Fprintf(&text, "Thank you for your order %s.\n\n", inv.Reference)
	fmt.Fprintf(&body, "<p>Thank you for your order <strong>%s</strong>.</p>", html.EscapeString(inv.Reference))

	for _, line := range inv.Lines {
		fmt.Fprintf(&text, "%s\n", line.InvoiceNumber)
		fmt.Fprintf(&body, "<h3>%s</h3><ul>", html.EscapeString(line.InvoiceNumber))
		for _, item := range line.Items {
			fmt.Fprintf(&text, "  %dx %s  %s\n", item.Quantity, item.Name, rupiah(item.Subtotal))
			fmt.Fprintf(&body, "<li>%dx %s &middot; %s</li>", item.Quantity, html.EscapeString(item.Name), rupiah(item.Subtotal))
		}
		body.WriteString("</ul>")
		if line.UniqueCode > 0 {
			fmt.Fprintf(&text, "  unique code %d\n", line.UniqueCode)
			fmt.Fprintf(&body, "<p>Unique code: %d</p>", line.UniqueCode)
		}
		fmt.Fprintf(&text, "  total %s\n\n", rupiah(line.TotalTransfer))
		fmt.Fprintf(&body, "<p>Total: <strong>%s</strong></p>", rupiah(line.TotalTransfer))
	}

	deadline := inv.Deadline.In(jakarta).Format("02 Jan 2006 15:04 MST")
	fmt.Fprintf(&text, "Amount due: %s before %s.\n", rupiah(inv.Total), deadline)
	fmt.Fprintf(&body, "<p>Amount due: <strong>%s</strong> before %s.</p>", rupiah(inv.Total), deadline)
	if inv.PaymentURL != nil && *inv.PaymentURL != "" {
		fmt.Fprintf(&text, "Pay here: %s\n", *inv.PaymentURL)
		fmt.Fprintf(&body, `<p><a href="%s">Pay now</a></p>`, html.EscapeString(*inv.PaymentURL))
	}
	track := strings.TrimRight(baseURL, "/") + "/check-order?invoice=" + url.QueryEscape(inv.Reference)
	fmt.Fprintf(&text, "Track your order: %s\n", track)
	fmt.Fprintf(&body, `<p><a href="%s">Track your order</a></p>`, html.EscapeString(track))

	return mailer.Message{
		To:      inv.To,
		Subject: "Fishit order " + inv.Reference,
		Text:    text.String(),
		HTML:    body.String(),
	}
}

func renderVerification(to, username, token, baseURL string) mailer.Message {
	link := strings.TrimRight(baseURL, "/") + "/verify-email/" + url.PathEscape(token)
	return mailer.Message{
		To:      to,
		Subject: "Verify your Fishit seller account",
		Text:    fmt.Sprintf("Hi %s,\n\nConfirm your email within 24 hours:\n%s\n", username, link),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Confirm your email within 24 hours:</p><p><a href="%s">Verify email</a></p>`,
			html.EscapeString(username), html.EscapeString(link)),
	}
}

// rupiah formats an amount as "Rp 40.000".
func rupiah(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}
