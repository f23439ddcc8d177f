package model

import (
	"time"
)

// Code is a single-use activation or unlock token.
//
// A code is issued unused and flips to used at most once. Expiry is never
// stored as a state: a code whose ExpiresAt has passed is dead whatever Used says.
type Code struct {
	ID              string
	Value           string
	Subject         *string // phone number the code was sent to; nil for unlock keys
	CreatedAt       time.Time
	ExpiresAt       time.Time
	Used            bool
	UsedBy          *string
	UsedAt          *time.Time
	LinkedPaymentID *string
}

// Status reports the computed lifecycle state at the given instant.
func (c *Code) Status(now time.Time) CodeStatus {
	switch {
	case c.Used:
		return CodeStatusUsed
	case !now.Before(c.ExpiresAt):
		return CodeStatusExpired
	default:
		return CodeStatusActive
	}
}

// Redeemable reports whether the code can still be consumed at now.
func (c *Code) Redeemable(now time.Time) bool {
	return c.Status(now) == CodeStatusActive
}

type CodeStatus string

const (
	CodeStatusActive  CodeStatus = "active"
	CodeStatusUsed    CodeStatus = "used"
	CodeStatusExpired CodeStatus = "expired"
)

// CodeStats mirrors the dashboard counters.
type CodeStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Used    int `json:"used"`
	Expired int `json:"expired"`
}
