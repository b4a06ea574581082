package payments

import "strings"

// VANumber is one entry of the gateway's va_numbers array
type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// Notification is the gateway's HTTP notification body
type Notification struct {
	OrderID           string     `json:"order_id" validate:"required"`
	SignatureKey      string     `json:"signature_key" validate:"required"`
	TransactionStatus string     `json:"transaction_status" validate:"required"`
	StatusCode        string     `json:"status_code"`
	GrossAmount       string     `json:"gross_amount"`
	FraudStatus       string     `json:"fraud_status,omitempty"`
	PaymentType       string     `json:"payment_type"`
	TransactionID     string     `json:"transaction_id"`
	TransactionTime   string     `json:"transaction_time,omitempty"`
	SettlementTime    string     `json:"settlement_time,omitempty"`
	StatusMessage     string     `json:"status_message,omitempty"`
	MerchantID        string     `json:"merchant_id,omitempty"`
	Currency          string     `json:"currency,omitempty"`
	VANumbers         []VANumber `json:"va_numbers,omitempty"`
	PermataVANumber   string     `json:"permata_va_number,omitempty"`
	BillKey           string     `json:"bill_key,omitempty"`
	BillerCode        string     `json:"biller_code,omitempty"`
}

// ChannelReference extracts the customer-facing payment reference for the channel
func (n *Notification) ChannelReference() (number, bank string) {
	switch {
	case len(n.VANumbers) > 0:
		return n.VANumbers[0].VANumber, strings.ToLower(n.VANumbers[0].Bank)
	case n.PermataVANumber != "":
		return n.PermataVANumber, "permata"
	case n.BillKey != "":
		return n.BillerCode + "-" + n.BillKey, "mandiri"
	}
	return "", ""
}
