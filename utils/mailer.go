package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"
)

// OutboundEmail is one message waiting to be delivered
type OutboundEmail struct {
	To      string
	Subject string
	Body    string // HTML
}

// Mailer delivers a single email
type Mailer interface {
	Send(email OutboundEmail) error
}

// SMTPMailer sends email through an SMTP relay with gomail
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(host, port, username, password),
		from:     from,
		fromName: "FounderMatch",
	}
}

// Configured reports whether an SMTP host was provided
func (m *SMTPMailer) Configured() bool {
	return m.dialer.Host != ""
}

func (m *SMTPMailer) Send(email OutboundEmail) error {
	if !m.Configured() {
		return fmt.Errorf("email configuration not initialized")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.from, m.fromName))
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/html", email.Body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

var notificationTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>{{.Title}}</h2>
    </div>
    <div class="content">
        <p>Hi {{.Name}},</p>
        <p>{{.Message}}</p>
    </div>
    <div class="footer">
        <p>You are receiving this because you have an account on FounderMatch.</p>
        <p>&copy; {{.Year}} FounderMatch</p>
    </div>
</body>
</html>`))

// RenderNotificationEmail builds the email sent alongside an in-app notification
func RenderNotificationEmail(to, name, title, message string) (OutboundEmail, error) {
	var body bytes.Buffer
	err := notificationTemplate.Execute(&body, struct {
		Name    string
		Title   string
		Message string
		Year    int
	}{name, title, message, time.Now().Year()})
	if err != nil {
		return OutboundEmail{}, fmt.Errorf("error executing template: %w", err)
	}
	return OutboundEmail{To: to, Subject: title, Body: body.String()}, nil
}
