// Package notify sends the transactional mails of the checkout flow.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers plain-text mail over SMTP without authentication, which is
// what the local relay expects. With an empty addr every send is a no-op.
type Mailer struct {
	addr     string
	from     string
	currency string
	send     sendFunc
}

func NewMailer(addr, from, currency string) *Mailer {
	return &Mailer{addr: addr, from: from, currency: currency, send: smtp.SendMail}
}

func (m *Mailer) OrderConfirmed(ctx context.Context, to string, o orders.Order) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", o.ID)
	for _, it := range o.Items {
		name := it.Name
		if name == "" {
			name = it.ProductID
		}
		fmt.Fprintf(&b, "  %d x %s  %d %s\n", it.Qty, name, it.LineTotal(), m.currency)
	}
	fmt.Fprintf(&b, "\nTotal: %d %s\nStatus: %s\n", o.TotalCents, m.currency, o.Status)
	if o.IsMilestone {
		b.WriteString("\nYour order is one of our milestone orders. Congratulations!\n")
	}
	return m.deliver(ctx, to, "Order confirmation "+o.ID, b.String())
}

func (m *Mailer) StatusChanged(ctx context.Context, to string, o orders.Order) error {
	body := fmt.Sprintf("The status of your order %s is now %s.\n", o.ID, o.Status)
	return m.deliver(ctx, to, "Order update "+o.ID, body)
}

func (m *Mailer) deliver(ctx context.Context, to, subject, body string) error {
	if m.addr == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := "From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n" +
		body
	if err := m.send(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
