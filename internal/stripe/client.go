package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com"

type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ListCharges returns the charges for a payment intent, most recent first.
func (c *Client) ListCharges(ctx context.Context, paymentIntentID string) ([]Charge, error) {
	values := url.Values{}
	values.Set("payment_intent", paymentIntentID)
	endpoint := c.baseURL + "/v1/charges?" + values.Encode()

	var resp struct {
		Data []Charge `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) GetBalanceTransaction(ctx context.Context, id string) (*BalanceTransaction, error) {
	endpoint := c.baseURL + "/v1/balance_transactions/" + url.PathEscape(id)
	var bt BalanceTransaction
	if err := c.getJSON(ctx, endpoint, &bt); err != nil {
		return nil, err
	}
	return &bt, nil
}

// GetPaymentIntent fetches a payment intent, optionally expanding the payment
// method so the issuer can be derived from it.
func (c *Client) GetPaymentIntent(ctx context.Context, id string, expandPaymentMethod bool) (*PaymentIntent, error) {
	endpoint := c.baseURL + "/v1/payment_intents/" + url.PathEscape(id)
	if expandPaymentMethod {
		values := url.Values{}
		values.Add("expand[]", "payment_method")
		endpoint += "?" + values.Encode()
	}
	var pi PaymentIntent
	if err := c.getJSON(ctx, endpoint, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

func (c *Client) CreateRefund(ctx context.Context, params RefundParams) (*Refund, error) {
	values := url.Values{}
	values.Set("payment_intent", params.PaymentIntent)
	if params.Amount > 0 {
		values.Set("amount", strconv.FormatInt(params.Amount, 10))
	}
	for k, v := range params.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	var refund Refund
	if err := c.postForm(ctx, c.baseURL+"/v1/refunds", values, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, endpoint string, values url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe http status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe http status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
