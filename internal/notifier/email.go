package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/julianstephens/daystreak/internal/logger"
)

// emailSender is the slice of the Resend client this package uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Email sends each notification as a plain-text email through Resend.
type Email struct {
	sender emailSender
	from   string
	to     []string
}

func NewEmail(apiKey, from string, to []string) (*Email, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("email notifier not configured (missing DAYSTREAK_RESEND_API_KEY)")
	}
	if from == "" || len(to) == 0 {
		return nil, fmt.Errorf("email notifier needs both a sender and at least one recipient")
	}
	return &Email{
		sender: resend.NewClient(apiKey).Emails,
		from:   from,
		to:     to,
	}, nil
}

func (e *Email) Deliver(title, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sent, err := e.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    e.from,
		To:      e.to,
		Subject: title,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	logger.Debug("email sent", "id", sent.Id, "to", e.to)
	return nil
}
