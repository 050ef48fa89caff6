package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Relay clients for the SMS, push and purchase-email services. All three are
// plain JSON POST endpoints; callers treat failures as best-effort.

const emailTimeout = 10 * time.Second

type SMSRelay struct {
	endpoint string
	client   *http.Client
}

func NewSMSRelay(endpoint string) *SMSRelay {
	return &SMSRelay{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *SMSRelay) SendSMS(ctx context.Context, phone, message string) error {
	if r.endpoint == "" {
		return errors.New("sms relay endpoint is not configured")
	}
	return postJSON(ctx, r.client, r.endpoint, map[string]string{
		"phone":   phone,
		"message": message,
	}, nil)
}

type PushMessage struct {
	OrderID     string
	Status      string
	OrderNumber string
	Title       string
	Body        string
}

type PushRelay struct {
	endpoint string
	client   *http.Client
}

func NewPushRelay(endpoint string) *PushRelay {
	return &PushRelay{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SendPush delivers an order-status notification to a single Expo push token.
// The relay answers 2xx with per-ticket statuses; a ticket-level error is
// reported as an error here so the caller can log it.
func (r *PushRelay) SendPush(ctx context.Context, token string, msg PushMessage) error {
	if r.endpoint == "" {
		return errors.New("push relay endpoint is not configured")
	}

	payload := map[string]any{
		"to":    token,
		"title": msg.Title,
		"body":  msg.Body,
		"data": map[string]any{
			"orderId":     msg.OrderID,
			"status":      msg.Status,
			"orderNumber": msg.OrderNumber,
			"type":        "order_status_update",
		},
		"sound":     "default",
		"priority":  "high",
		"channelId": "orders",
	}

	var resp struct {
		Data []struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := postJSON(ctx, r.client, r.endpoint, payload, &resp); err != nil {
		return err
	}
	for _, ticket := range resp.Data {
		if ticket.Status == "error" {
			return fmt.Errorf("push ticket error: %s", ticket.Message)
		}
	}
	return nil
}

type EmailRelay struct {
	endpoint string
	client   *http.Client
}

func NewEmailRelay(endpoint string) *EmailRelay {
	return &EmailRelay{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: emailTimeout},
	}
}

// SendPurchaseEmail dispatches the order-confirmation email. The first name is
// derived from the user's name, falling back to the mailbox part of the email.
func (r *EmailRelay) SendPurchaseEmail(ctx context.Context, orderID, email, name string) error {
	if r.endpoint == "" {
		return errors.New("email relay endpoint is not configured")
	}
	if email == "" {
		return errors.New("user has no email address")
	}

	firstName := ""
	if name != "" {
		firstName = strings.Fields(name)[0]
	}
	if firstName == "" {
		firstName, _, _ = strings.Cut(email, "@")
	}
	if firstName == "" {
		firstName = "Cliente"
	}

	ctx, cancel := context.WithTimeout(ctx, emailTimeout)
	defer cancel()
	return postJSON(ctx, r.client, r.endpoint, map[string]string{
		"firstName": firstName,
		"orderId":   orderID,
		"email":     email,
	}, nil)
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		if len(msg) > 0 {
			return fmt.Errorf("relay http status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return fmt.Errorf("relay http status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
