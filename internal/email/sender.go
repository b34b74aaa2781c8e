// Package email delivers account confirmation mail over SMTP.
package email

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

//go:embed templates/confirmation.html
var confirmationHTML string

var confirmationTemplate = template.Must(template.New("confirmation").Parse(confirmationHTML))

type Sender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSender(host string, port int, username, password, from string) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// SendConfirmation mails the confirmation link to a freshly signed-up (or
// resend-requesting) account.
func (s *Sender) SendConfirmation(to, username, confirmURL string) error {
	body, err := RenderConfirmation(username, confirmURL)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Confirm your email address")
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

// RenderConfirmation fills the confirmation template. Split out from sending
// so the body can be tested without an SMTP server.
func RenderConfirmation(username, confirmURL string) (string, error) {
	var buf bytes.Buffer
	err := confirmationTemplate.Execute(&buf, map[string]string{
		"Username":   username,
		"ConfirmURL": confirmURL,
	})
	if err != nil {
		return "", fmt.Errorf("render confirmation template: %w", err)
	}
	return buf.String(), nil
}
