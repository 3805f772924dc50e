package model

import "time"

// Inquiry statuses.
const (
	InquiryNew      = "new"
	InquiryRead     = "read"
	InquiryReplied  = "replied"
	InquiryArchived = "archived"
)

// Inquiry is a message sent through the public contact form.
type Inquiry struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidInquiryStatus reports whether s is one of the known statuses.
func ValidInquiryStatus(s string) bool {
	switch s {
	case InquiryNew, InquiryRead, InquiryReplied, InquiryArchived:
		return true
	}
	return false
}
