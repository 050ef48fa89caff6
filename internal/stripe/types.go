package stripe

import "encoding/json"

// ID accepts the two shapes Stripe uses for linked resources: a bare string id
// or an expanded object carrying an "id" field.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*id = ID(obj.ID)
	return nil
}

func (id ID) String() string { return string(id) }

type CardWallet struct {
	Type string `json:"type"`
}

type CardDetails struct {
	Brand  string      `json:"brand"`
	Wallet *CardWallet `json:"wallet"`
}

type PaymentMethodDetails struct {
	Type string       `json:"type"`
	Card *CardDetails `json:"card"`
}

type PaymentMethod struct {
	ID   string       `json:"id"`
	Type string       `json:"type"`
	Card *CardDetails `json:"card"`
}

// PaymentMethodRef is a payment_method field that is a string id unless the
// request expanded it.
type PaymentMethodRef struct {
	ID     string
	Method *PaymentMethod
}

func (r *PaymentMethodRef) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	if string(b) == "null" {
		return nil
	}
	r.Method = &PaymentMethod{}
	if err := json.Unmarshal(b, r.Method); err != nil {
		return err
	}
	r.ID = r.Method.ID
	return nil
}

type Charge struct {
	ID                   string                `json:"id"`
	Amount               int64                 `json:"amount"`
	Currency             string                `json:"currency"`
	Status               string                `json:"status"`
	PaymentIntent        ID                    `json:"payment_intent"`
	BalanceTransaction   ID                    `json:"balance_transaction"`
	PaymentMethodDetails *PaymentMethodDetails `json:"payment_method_details"`
}

type BalanceTransaction struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Fee    int64  `json:"fee"`
	Net    int64  `json:"net"`
}

type PaymentIntent struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	PaymentMethod PaymentMethodRef  `json:"payment_method"`
	Metadata      map[string]string `json:"metadata"`
}

type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent ID                `json:"payment_intent"`
	Invoice       ID                `json:"invoice"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

type Invoice struct {
	ID           string            `json:"id"`
	Subscription ID                `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type Refund struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type RefundParams struct {
	PaymentIntent string
	Amount        int64
	Metadata      map[string]string
}
