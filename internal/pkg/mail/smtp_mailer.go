package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/blockforge/blockforge/internal/pkg/env"
)

// SendMail delivers a single HTML email through the configured SMTP relay.
// Credentials are optional for relays that accept unauthenticated local mail.
func SendMail(to, subject, body string) error {
	host := env.GetEnv("SMTP_HOST", "localhost")
	port := env.GetEnv("SMTP_PORT", "25")
	sender := env.GetEnv("SMTP_SENDER", "no-reply@blockforge.local")

	var auth smtp.Auth
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	addr := host + ":" + port
	if err := smtp.SendMail(addr, auth, sender, []string{to}, []byte(msg.String())); err != nil {
		log.Printf("SMTP send to %s via %s failed: %v", to, addr, err)
		return err
	}
	return nil
}
