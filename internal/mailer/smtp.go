package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/sebastianDLL/notification-svc/internal/config"
)

// Send failure classes. ErrTransient is a hint that the caller may retry;
// this service does not retry automatically.
var (
	ErrAuth              = errors.New("smtp authentication failed")
	ErrRecipientRejected = errors.New("recipient rejected")
	ErrTransient         = errors.New("transient mail transport failure")
)

// SMTP delivers mail through a real SMTP server using go-mail.
type SMTP struct {
	cfg config.MailerConfig
}

func NewSMTP(cfg config.MailerConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

func (s *SMTP) Send(ctx context.Context, recipient, subject, body string) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(recipient); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrRecipientRejected, recipient, err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	c, err := mail.NewClient(s.cfg.SMTPHost,
		mail.WithPort(s.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(s.cfg.Encryption)),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps transport errors onto the failure classes above so callers
// can distinguish auth failures, rejected recipients and transient faults.
func classify(err error) error {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		switch {
		case sendErr.Reason == mail.ErrSMTPRcptTo:
			return fmt.Errorf("%w: %v", ErrRecipientRejected, err)
		case sendErr.IsTemp():
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	// SMTP 535: authentication credentials rejected.
	if strings.Contains(err.Error(), "535") {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	return err
}

func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
