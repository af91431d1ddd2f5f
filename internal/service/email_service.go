package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendOrderConfirmation(ctx context.Context, toEmail, orderNumber string, totalPaise int64, idempotencyKey string) error
}

// NoopEmailService is used when transactional email is disabled.
type NoopEmailService struct{}

func (s *NoopEmailService) SendOrderConfirmation(ctx context.Context, toEmail, orderNumber string, totalPaise int64, idempotencyKey string) error {
	log.Printf("[EmailService] noop send order confirmation to=%s order=%s", toEmail, orderNumber)
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendOrderConfirmation(ctx context.Context, toEmail, orderNumber string, totalPaise int64, idempotencyKey string) error {
	if toEmail == "" || orderNumber == "" {
		return fmt.Errorf("toEmail and orderNumber are required")
	}

	rupees := float64(totalPaise) / 100
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Order %s confirmed", orderNumber),
		Text:    fmt.Sprintf("Thank you for your order %s. Total: ₹%.2f. We will email you when it ships.", orderNumber, rupees),
		Html:    fmt.Sprintf("<p>Thank you for your order <strong>%s</strong>.</p><p>Total: ₹%.2f.</p><p>We will email you when it ships.</p>", orderNumber, rupees),
	}

	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
