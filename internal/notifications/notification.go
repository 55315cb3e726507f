package notifications

import "encoding/json"

// Notification is a single webhook delivery descriptor: one event routed to
// one subscription, carrying the nonce assigned to that delivery. Deliveries
// for the same event to different subscriptions are retried independently.
type Notification struct {
	SubscriptionID   uint64
	EventID          uint64
	Type             string
	Scope            string
	Nonce            uint64
	WebhookURL       string
	LegitimacySecret string
	Payload          json.RawMessage
}

// webhookBody is the JSON document posted to the subscriber's URL.
type webhookBody struct {
	Type           string          `json:"type"`
	Scope          string          `json:"scope"`
	SubscriptionID uint64          `json:"subscriptionId"`
	Nonce          uint64          `json:"nonce"`
	Payload        json.RawMessage `json:"payload"`
}

// handshakeBody is the challenge posted when validating a new subscription.
// The subscriber proves ownership of the URL by echoing the secret back in a
// 2xx response with the same shape.
type handshakeBody struct {
	Handshake string `json:"handshake"`
}
