// Package queue defines message payloads exchanged over the message broker.
package queue

// InquiryQueueName is the durable queue inquiry events are published to.
const InquiryQueueName = "inquiry.received"

// InquiryReceivedEvent is published after a contact-form inquiry is stored.
// It carries enough for a consumer to log or notify without querying the
// database.
type InquiryReceivedEvent struct {
	InquiryID  uint64 `json:"inquiry_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Subject    string `json:"subject"`
	ReceivedAt string `json:"received_at"`
}
