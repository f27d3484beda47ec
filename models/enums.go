package models

import "errors"

// SaleStatus is the bookkeeping state of a finalized sale. Any status may be
// set from any other; the operator is the source of truth and mistakes are
// corrected by just setting the right value. This is intentional, not a
// guarded state machine.
type SaleStatus string

const (
	SaleStatusPending  SaleStatus = "pending"
	SaleStatusPaid     SaleStatus = "paid"
	SaleStatusAnnulled SaleStatus = "annulled"
)

func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusPaid, SaleStatusAnnulled:
		return true
	}
	return false
}

var ErrorInvalidSaleStatus = errors.New("invalid sale status")

// WhatsAppOrderStatus tracks an inbound order while it waits for the
// shopkeeper to attend it.
type WhatsAppOrderStatus string

const (
	WhatsAppOrderStatusPending   WhatsAppOrderStatus = "pending"
	WhatsAppOrderStatusConfirmed WhatsAppOrderStatus = "confirmed"
	WhatsAppOrderStatusRejected  WhatsAppOrderStatus = "rejected"
)

// Outbox publish lifecycle for sale notifications.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
