package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSService delivers short text messages to a phone number in E.164 format.
type SMSService interface {
	// Send returns the provider-assigned message identifier on success.
	Send(ctx context.Context, to, body string) (string, error)
}

// NoopSMSService is used when the SMS provider is not configured (local dev).
type NoopSMSService struct{}

func (s *NoopSMSService) Send(ctx context.Context, to, body string) (string, error) {
	log.Printf("[SMSService] noop send to=%s", to)
	return "noop", nil
}

// TwilioSMSService sends messages via the Twilio REST API.
type TwilioSMSService struct {
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
}

type twilioResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"code,omitempty"`
	ErrorMessage string `json:"message,omitempty"`
}

func NewTwilioSMSService(accountSID, authToken, fromNumber string, timeout time.Duration) (*TwilioSMSService, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio account SID and auth token are required")
	}
	if fromNumber == "" {
		return nil, fmt.Errorf("twilio from number is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioSMSService{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (s *TwilioSMSService) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" || body == "" {
		return "", fmt.Errorf("to and body are required")
	}
	if !strings.HasPrefix(to, "+") {
		return "", fmt.Errorf("destination number must be in E.164 format")
	}

	apiURL := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.fromNumber)
	form.Set("Body", body)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sid, retryable, err := s.doSend(ctx, apiURL, form)
		if err == nil {
			return sid, nil
		}
		lastErr = err

		if !retryable {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}

	return "", fmt.Errorf("twilio send failed after retries: %w", lastErr)
}

func (s *TwilioSMSService) doSend(ctx context.Context, apiURL string, form url.Values) (sid string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", false, fmt.Errorf("failed to create twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Сетевые таймауты ретраим, остальное — нет
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", true, fmt.Errorf("twilio request timed out: %w", err)
		}
		return "", false, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	var tr twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", false, fmt.Errorf("failed to decode twilio response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		err := fmt.Errorf("twilio API error (status %d, code %d): %s",
			resp.StatusCode, tr.ErrorCode, tr.ErrorMessage)
		// 429 и 5xx имеет смысл повторить один раз
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", true, err
		}
		return "", false, err
	}

	return tr.SID, false, nil
}
