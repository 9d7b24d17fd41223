package socmonitor

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// EmailService sends operator notifications for events that deserve more
// than a log line, e.g. a forced power cut.
type EmailService interface {
	SendEmail(subject, body string) error

	SetMaxEmails(max int, interval time.Duration)
}

// SMTPEmailService sends mail through a plain-auth SMTP relay (GMail works
// with an app password).
type SMTPEmailService struct {
	host     string
	port     int
	username string
	password string

	from string
	to   []string

	interval time.Duration
	max      int
	sent     int
	lastSent time.Time
}

func NewSMTPEmailService(host, from string, to []string, username, password string, port int) EmailService {
	return &SMTPEmailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		max:      -1,
		lastSent: time.Now(),
	}
}

// SetMaxEmails caps sends to max per interval. Unset means unlimited.
func (e *SMTPEmailService) SetMaxEmails(max int, interval time.Duration) {
	e.max = max
	e.interval = interval
}

func (e *SMTPEmailService) allow() error {
	if e.max <= 0 {
		return nil
	}
	if time.Since(e.lastSent) > e.interval {
		e.sent = 0
		return nil
	}
	if e.sent >= e.max {
		return fmt.Errorf("maximum of %d emails have been sent within %v", e.max, e.interval)
	}
	e.sent++
	return nil
}

func (e *SMTPEmailService) SendEmail(subject, msg string) error {
	if err := e.allow(); err != nil {
		return err
	}
	body := fmt.Sprintf("To: %s\r\nSubject: [soc-monitor] %s\r\n\r\n%s\r\n",
		strings.Join(e.to, ","), subject, msg)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	if err := smtp.SendMail(fmt.Sprintf("%s:%d", e.host, e.port), auth, e.from, e.to, []byte(body)); err != nil {
		return err
	}
	e.lastSent = time.Now()
	return nil
}
