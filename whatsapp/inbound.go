package whatsapp

import "time"

// InboundMessage is one customer message relayed by the WhatsApp bridge
// through the Pub/Sub push subscription.
type InboundMessage struct {
	FromPhone   string    `json:"from_phone"`
	ProfileName string    `json:"profile_name"`
	MessageBody string    `json:"message_body"`
	CreatedAt   time.Time `json:"created_at"`
}
