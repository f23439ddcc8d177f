package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
)

// Subscription is created once when a payment-linked code is redeemed.
// ActivationCode and PaymentID are back-references only.
type Subscription struct {
	ID             string
	UserID         string
	ActivationCode string
	PaymentID      string
	StartDate      time.Time
	ExpiryDate     time.Time
	Status         SubscriptionStatus
}
