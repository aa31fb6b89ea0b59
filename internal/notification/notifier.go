// Package notification delivers SMS alerts through shoutrrr. When no
// delivery service is configured, messages are logged instead of sent so
// the rest of the pipeline keeps working.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/evanhu96/load-management-app/internal/logger"
)

// Delivery statuses recorded in alert history.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
	StatusLogged = "logged"
)

// DefaultTestMessage is sent when a test alert carries no message body.
const DefaultTestMessage = "Test alert from Load Management System"

// RecipientPlaceholder marks where the resolved destination number is
// substituted into the service URL, for example
// generic://sms-gateway.example/send?to={phone} or ntfy://ntfy.sh/{phone}.
// The number is inserted without its leading plus so it stays URL-safe.
const RecipientPlaceholder = "{phone}"

// Notifier sends SMS messages. Send returns the delivery status and, for
// failed deliveries, the underlying error for logging. A missing service
// configuration or phone number is not an error, it degrades to logged.
type Notifier interface {
	Send(ctx context.Context, phoneNumber, message string) (string, error)
	Configured() bool
}

// ShoutrrrNotifier delivers through a shoutrrr service URL. The URL should
// carry RecipientPlaceholder so per-truck phone overrides select the real
// destination; senders are built and cached per resolved number.
type ShoutrrrNotifier struct {
	serviceURL string
	timeout    time.Duration
	log        logger.Logger

	mu      sync.Mutex
	senders map[string]*router.ServiceRouter
}

// NewShoutrrrNotifier builds a notifier for the given shoutrrr URL. An
// empty URL yields a degraded notifier that logs every message. An invalid
// URL is an error so misconfiguration surfaces at startup.
func NewShoutrrrNotifier(serviceURL string, timeout time.Duration, log logger.Logger) (*ShoutrrrNotifier, error) {
	n := &ShoutrrrNotifier{
		serviceURL: serviceURL,
		timeout:    timeout,
		log:        log,
		senders:    make(map[string]*router.ServiceRouter),
	}
	if serviceURL == "" {
		log.Info("SMS service not configured, alerts will be logged only")
		return n, nil
	}

	// Validate the URL shape with a sample destination so a typo fails
	// the boot, not the first alert.
	if _, err := shoutrrr.CreateSender(destinationURL(serviceURL, "+15550000000")); err != nil {
		return nil, fmt.Errorf("invalid notification service URL: %w", err)
	}
	if !strings.Contains(serviceURL, RecipientPlaceholder) {
		log.Warn("notification service URL has no {phone} placeholder, every alert goes to the URL's own recipient")
	}
	log.Info("SMS service initialized")
	return n, nil
}

// Configured reports whether a real delivery service is wired up.
func (n *ShoutrrrNotifier) Configured() bool {
	return n.serviceURL != ""
}

func (n *ShoutrrrNotifier) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	if n.serviceURL == "" || phoneNumber == "" {
		n.log.Info("SMS alert (not sent, missing config)",
			logger.String("phone_number", phoneNumber),
			logger.Int("message_length", len(message)),
		)
		return StatusLogged, nil
	}

	if err := ctx.Err(); err != nil {
		return StatusFailed, err
	}

	sender, err := n.senderFor(phoneNumber)
	if err != nil {
		n.log.Error("SMS sender setup failed",
			logger.String("phone_number", phoneNumber),
			logger.Error(err),
		)
		return StatusFailed, err
	}

	for _, err := range sender.Send(message, &types.Params{"title": "Load Alert"}) {
		if err != nil {
			n.log.Error("SMS sending failed",
				logger.String("phone_number", phoneNumber),
				logger.Error(err),
			)
			return StatusFailed, err
		}
	}

	n.log.Info("SMS sent",
		logger.String("phone_number", phoneNumber),
	)
	return StatusSent, nil
}

// senderFor returns the cached sender for a destination number, building
// it on first use. The cache stays small: two truck overrides plus the
// default number.
func (n *ShoutrrrNotifier) senderFor(phone string) (*router.ServiceRouter, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if sender, ok := n.senders[phone]; ok {
		return sender, nil
	}

	sender, err := shoutrrr.CreateSender(destinationURL(n.serviceURL, phone))
	if err != nil {
		return nil, fmt.Errorf("failed to build sender for destination: %w", err)
	}
	sender.Timeout = n.timeout
	n.senders[phone] = sender
	return sender, nil
}

func destinationURL(serviceURL, phone string) string {
	return strings.ReplaceAll(serviceURL, RecipientPlaceholder, strings.TrimPrefix(phone, "+"))
}

// SanitizePhoneNumber normalizes a phone number to E.164-ish form. Ten
// digits are treated as a US number, eleven digits starting with 1 get a
// plus sign, anything shorter than ten digits is rejected.
func SanitizePhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && strings.HasPrefix(d, "1"):
		return "+" + d
	case len(d) >= 10:
		return "+" + d
	default:
		return ""
	}
}
