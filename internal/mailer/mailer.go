package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
)

// Sender delivers a rendered message. The SMTP implementation is used in
// production; tests substitute a recorder.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

type SMTPSender struct {
	Addr     string // host:port
	Host     string
	From     string
	Password string
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		s.From, to, subject, htmlBody,
	)
	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Mailer renders notification templates and sends them. Every Send* method is
// best-effort: failures are logged and never returned, because notification
// delivery must not fail caller transactions.
type Mailer struct {
	Sender Sender
	Log    *slog.Logger
}

func (m *Mailer) send(to, subject, tmplName string, data any) {
	if m == nil || m.Sender == nil {
		return
	}
	tmpl, ok := templates[tmplName]
	if !ok {
		m.logErr(tmplName, to, fmt.Errorf("unknown template %q", tmplName))
		return
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		m.logErr(tmplName, to, err)
		return
	}
	if err := m.Sender.Send(to, subject, body.String()); err != nil {
		m.logErr(tmplName, to, err)
	}
}

func (m *Mailer) logErr(tmpl, to string, err error) {
	l := m.Log
	if l == nil {
		l = slog.Default()
	}
	l.Error("mail send failed", "template", tmpl, "to", to, "error", err)
}

func (m *Mailer) SendWelcome(to, name string) {
	m.send(to, "Welcome to the marketplace", "welcome", map[string]any{"Name": name})
}

func (m *Mailer) SendVendorWelcome(to, name, storeName string) {
	m.send(to, "Your vendor account is ready", "vendor-welcome", map[string]any{"Name": name, "StoreName": storeName})
}

func (m *Mailer) SendOTP(to, otp, reason string) {
	m.send(to, "Your one-time code", "otp", map[string]any{"OTP": otp, "Reason": reason})
}

func (m *Mailer) SendResetLink(to, link string) {
	m.send(to, "Reset your password", "reset-link", map[string]any{"Link": link})
}

func (m *Mailer) SendNewOrder(to string, orderID uint) {
	m.send(to, "You have a new order", "new-order", map[string]any{"OrderID": orderID})
}

func (m *Mailer) SendOrderConfirmation(to string, orderID uint, total float64) {
	m.send(to, "Your order is confirmed", "order-confirmation", map[string]any{"OrderID": orderID, "Total": total})
}

func (m *Mailer) SendPaymentFailed(to string, orderID uint) {
	m.send(to, "Payment failed", "payment-failed", map[string]any{"OrderID": orderID})
}

func (m *Mailer) SendOrderProgress(to string, orderID uint, status string) {
	m.send(to, "Order update", "order-progress", map[string]any{"OrderID": orderID, "Status": status})
}

func (m *Mailer) SendSettlementUpdate(to string, settlementID uint, status string) {
	m.send(to, "Settlement update", "settlement-update", map[string]any{"SettlementID": settlementID, "Status": status})
}

func (m *Mailer) SendProductApproval(to, productName, status string) {
	m.send(to, "Product listing review", "product-approval", map[string]any{"ProductName": productName, "Status": status})
}

var templates = map[string]*template.Template{
	"welcome": template.Must(template.New("welcome").Parse(
		`<p>Hi {{.Name}},</p><p>Welcome aboard. Your account has been created.</p>`)),
	"vendor-welcome": template.Must(template.New("vendor-welcome").Parse(
		`<p>Hi {{.Name}},</p><p>Your store <b>{{.StoreName}}</b> is now live on the marketplace.</p>`)),
	"otp": template.Must(template.New("otp").Parse(
		`<p>Your one-time code for {{.Reason}} is <b>{{.OTP}}</b>. It expires in 15 minutes.</p>`)),
	"reset-link": template.Must(template.New("reset-link").Parse(
		`<p>Click <a href="{{.Link}}">here</a> to reset your password. The link expires in 15 minutes.</p>`)),
	"new-order": template.Must(template.New("new-order").Parse(
		`<p>Order #{{.OrderID}} contains one of your products. Log in to process it.</p>`)),
	"order-confirmation": template.Must(template.New("order-confirmation").Parse(
		`<p>Payment received for order #{{.OrderID}} ({{printf "%.2f" .Total}}). Thank you!</p>`)),
	"payment-failed": template.Must(template.New("payment-failed").Parse(
		`<p>Payment for order #{{.OrderID}} failed. The reserved items have been released.</p>`)),
	"order-progress": template.Must(template.New("order-progress").Parse(
		`<p>Order #{{.OrderID}} is now: {{.Status}}.</p>`)),
	"settlement-update": template.Must(template.New("settlement-update").Parse(
		`<p>Settlement #{{.SettlementID}} is now: {{.Status}}.</p>`)),
	"product-approval": template.Must(template.New("product-approval").Parse(
		`<p>Your listing "{{.ProductName}}" has been {{.Status}}.</p>`)),
}
