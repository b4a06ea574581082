package payments

import (
	"strings"
	"time"
)

// Gateway transaction_status vocabulary
const (
	gatewayCapture           = "capture"
	gatewaySettlement        = "settlement"
	gatewayPending           = "pending"
	gatewayDeny              = "deny"
	gatewayCancel            = "cancel"
	gatewayExpire            = "expire"
	gatewayFailure           = "failure"
	gatewayRefund            = "refund"
	gatewayChargeback        = "chargeback"
	gatewayPartialRefund     = "partial_refund"
	gatewayPartialChargeback = "partial_chargeback"
	gatewayAuthorize         = "authorize"
)

// Gateway fraud_status vocabulary
const (
	fraudAccept    = "accept"
	fraudChallenge = "challenge"
	fraudDeny      = "deny"
)

// SettlementTimeLayout is the gateway's timestamp format, expressed in WIB (UTC+7)
const SettlementTimeLayout = "2006-01-02 15:04:05"

var gatewayZone = time.FixedZone("WIB", 7*60*60)

// Classification is the mapper's verdict on one notification
type Classification struct {
	Target         Status
	SettlementTime string
	PaidAt         *time.Time
}

// Label names the verdict for the audit trail
func (c Classification) Label() string {
	if c.Target == StatusUnchanged {
		return "UNCHANGED"
	}
	return string(c.Target)
}

// MapStatus is total over the gateway vocabulary; anything unrecognised maps to StatusUnchanged
func MapStatus(transactionStatus, fraudStatus string) Status {
	tx := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))

	switch tx {
	case gatewayCapture, gatewaySettlement:
		switch fraud {
		case "", fraudAccept:
			return StatusSuccess
		case fraudChallenge:
			return StatusChallenge
		case fraudDeny:
			return StatusDeny
		default:
			return StatusUnchanged
		}
	case gatewayDeny:
		return StatusDeny
	case gatewayCancel, gatewayFailure:
		return StatusFailed
	case gatewayExpire:
		return StatusExpired
	case gatewayPending:
		return StatusPending
	case gatewayRefund, gatewayChargeback:
		return StatusRefunded
	case gatewayPartialRefund, gatewayPartialChargeback, gatewayAuthorize:
		return StatusUnchanged
	}
	return StatusUnchanged
}

// Classify maps a notification and captures its settlement time verbatim
func Classify(n *Notification) Classification {
	c := Classification{
		Target:         MapStatus(n.TransactionStatus, n.FraudStatus),
		SettlementTime: n.SettlementTime,
	}
	if n.SettlementTime != "" {
		if t, err := time.ParseInLocation(SettlementTimeLayout, n.SettlementTime, gatewayZone); err == nil {
			utc := t.UTC()
			c.PaidAt = &utc
		}
	}
	return c
}
