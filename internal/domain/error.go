package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrOperationFailed    = errors.New("database operation failed")

	// Payment ingestion
	ErrDuplicatePayment = errors.New("transaction already processed")

	// Code lifecycle
	ErrIssuanceExhausted = errors.New("activation code issuance exhausted retries")
	ErrInvalidOrExpired  = errors.New("invalid or expired code")
)
