// Package mail sends the verification and password-reset messages over SMTP.
// Delivery is best effort; callers fire it from a goroutine and only log
// failures.
package mail

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// PublicURL is the externally reachable base of this service, used in
	// verification links. FrontendURL hosts the reset-password page.
	PublicURL   string
	FrontendURL string
}

const verificationBody = `<html><body>
<h2>Confirm your email</h2>
<p>Follow the link to confirm your account:</p>
<p><a href="%s">Confirm email</a></p>
<p>The link is valid for 24 hours. If you did not sign up, ignore this message.</p>
</body></html>`

const resetBody = `<html><body>
<h2>Password reset</h2>
<p>Follow the link to choose a new password:</p>
<p><a href="%s">Reset password</a></p>
<p>The link is valid for 24 hours. If you did not request a reset, ignore this message.</p>
</body></html>`

func (m *Mailer) SendVerification(to, token string) error {
	link := fmt.Sprintf("%s/api/v1/auth/verify-email?token=%s", m.PublicURL, token)
	return m.send(to, "Confirm your email", fmt.Sprintf(verificationBody, link))
}

func (m *Mailer) SendPasswordReset(to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.FrontendURL, token)
	return m.send(to, "Password reset", fmt.Sprintf(resetBody, link))
}

func (m *Mailer) send(to, subject, html string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
