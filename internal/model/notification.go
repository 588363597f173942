package model

import "time"

// Recipient roles in a notification.
const (
	RecipientSender    = "sender"
	RecipientRecipient = "recipient"
	RecipientOwner     = "owner"
)

// Notification is the message published for the mail service. Amounts are
// strings with two decimals. Email and DisplayName are filled in at delivery.
type Notification struct {
	Event         string                   `json:"event"`
	Recipient     NotificationRecipient    `json:"recipient"`
	Transaction   *NotificationTransaction `json:"transaction,omitempty"`
	Account       *NotificationAccount     `json:"account,omitempty"`
	Reason        string                   `json:"reason,omitempty"`
	CorrelationID string                   `json:"correlation_id"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

type NotificationRecipient struct {
	OwnerID     int64  `json:"owner_id"`
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

type NotificationTransaction struct {
	ID                   int64  `json:"id,omitempty"`
	Reference            string `json:"reference,omitempty"`
	OriginAccountID      int64  `json:"origin_account_id"`
	DestinationAccountID int64  `json:"destination_account_id"`
	Amount               string `json:"amount"`
	Kind                 string `json:"kind"`
	Description          string `json:"description,omitempty"`
}

type NotificationAccount struct {
	ID              int64  `json:"id"`
	Number          string `json:"number"`
	Type            string `json:"type,omitempty"`
	PreviousStatus  string `json:"previous_status,omitempty"`
	Status          string `json:"status"`
	PreviousBalance string `json:"previous_balance,omitempty"`
	Balance         string `json:"balance,omitempty"`
}
