// Package mailer dispatches outbound email for the OTP-gated registration
// flow over a STARTTLS SMTP relay.
package mailer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sony/gobreaker"

	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
)

var ErrSendFailed = errors.New("mailer: failed to send email")

// Mailer sends HTML email through a configured SMTP relay, wrapped in a
// circuit breaker so a stalled relay fails fast instead of blocking the
// registration flow's goroutine pool.
type Mailer struct {
	host, user, password, from string
	port                       int
	cb                         *gobreaker.CircuitBreaker
}

// New builds a Mailer bound to the given relay credentials.
func New(host string, port int, user, password, from string) *Mailer {
	st := gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("mailer").Set(stateVal)
		},
	}

	return &Mailer{
		host: host, port: port, user: user, password: password, from: from,
		cb: gobreaker.NewCircuitBreaker(st),
	}
}

// buildMessage renders the RFC 5322 message body for an HTML email.
func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf("From: %s\r\n", from) +
		fmt.Sprintf("To: %s\r\n", to) +
		fmt.Sprintf("Subject: %s\r\n", subject) +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"Content-Transfer-Encoding: 7bit\r\n" +
		"\r\n<html><body>" + body + "</body></html>\r\n"
}

// Send dispatches an HTML email to toEmail with the given subject and body.
func (m *Mailer) Send(toEmail, subject, body string) error {
	_, err := m.cb.Execute(func() (any, error) {
		auth := sasl.NewPlainClient("", m.user, m.password)
		msg := strings.NewReader(buildMessage(m.from, toEmail, subject, body))

		addr := fmt.Sprintf("%s:%d", m.host, m.port)
		if err := smtp.SendMail(addr, auth, m.from, []string{toEmail}, msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		return nil, nil
	})
	return err
}
