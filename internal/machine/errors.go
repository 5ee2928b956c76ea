package machine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes transaction failures.
type ErrorCode string

const (
	// ErrCodeInvalidDenomination indicates a coin outside the accepted set.
	ErrCodeInvalidDenomination ErrorCode = "INVALID_DENOMINATION"

	// ErrCodeInsufficientFunds indicates the balance does not cover the cost.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// ErrCodeOutOfStock indicates a requested item has no stock.
	ErrCodeOutOfStock ErrorCode = "OUT_OF_STOCK"

	// ErrCodeEmptySelection indicates a commit with nothing selected.
	ErrCodeEmptySelection ErrorCode = "EMPTY_SELECTION"

	// ErrCodeNothingToCancel indicates a cancel with no balance or selection.
	ErrCodeNothingToCancel ErrorCode = "NOTHING_TO_CANCEL"

	// ErrCodeDispenseInProgress indicates an operation attempted mid-dispense.
	ErrCodeDispenseInProgress ErrorCode = "DISPENSE_IN_PROGRESS"

	// ErrCodeUnknownItem indicates an identifier outside the catalog.
	ErrCodeUnknownItem ErrorCode = "UNKNOWN_ITEM"
)

// VendError is a local, recoverable transaction failure.
//
// Every engine operation reports failures as *VendError. None are fatal:
// the machine's state remains valid and queryable after any of them, and a
// failed guard leaves balance and selection unchanged.
type VendError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ItemID names the affected item (stock and catalog errors).
	ItemID string

	// Amount carries the offending denomination or the shortfall
	// (denomination and funds errors).
	Amount int
}

// Error implements the error interface.
func (e *VendError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.ItemID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the error code from an error.
// Returns "" if the error is not a *VendError. Handles wrapped errors.
func CodeOf(err error) ErrorCode {
	var ve *VendError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsInsufficientFunds reports whether err is an insufficient-funds failure.
func IsInsufficientFunds(err error) bool {
	return CodeOf(err) == ErrCodeInsufficientFunds
}

// IsOutOfStock reports whether err is a stock failure.
func IsOutOfStock(err error) bool {
	return CodeOf(err) == ErrCodeOutOfStock
}

func errInvalidDenomination(denomination int) *VendError {
	return &VendError{
		Code:    ErrCodeInvalidDenomination,
		Message: fmt.Sprintf("%d is not an accepted denomination", denomination),
		Amount:  denomination,
	}
}

func errInsufficientFunds(shortfall int) *VendError {
	return &VendError{
		Code:    ErrCodeInsufficientFunds,
		Message: fmt.Sprintf("insert %d more to cover the purchase", shortfall),
		Amount:  shortfall,
	}
}

func errOutOfStock(itemID string) *VendError {
	return &VendError{
		Code:    ErrCodeOutOfStock,
		Message: "item is out of stock",
		ItemID:  itemID,
	}
}

func errEmptySelection() *VendError {
	return &VendError{
		Code:    ErrCodeEmptySelection,
		Message: "no items selected",
	}
}

func errNothingToCancel() *VendError {
	return &VendError{
		Code:    ErrCodeNothingToCancel,
		Message: "no balance or selection to refund",
	}
}

func errDispenseInProgress() *VendError {
	return &VendError{
		Code:    ErrCodeDispenseInProgress,
		Message: "dispense in progress",
	}
}

func errUnknownItem(itemID string) *VendError {
	return &VendError{
		Code:    ErrCodeUnknownItem,
		Message: "item is not in the catalog",
		ItemID:  itemID,
	}
}
