package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/evservice/core/clientstore"
)

// PendingBooking is the booking draft staged before leaving for the gateway.
type PendingBooking struct {
	OrderID         string    `json:"orderId"`
	ServiceCenterID string    `json:"serviceCenterId,omitempty"`
	VehicleID       string    `json:"vehicleId,omitempty"`
	ServiceType     string    `json:"serviceType,omitempty"`
	AppointmentAt   time.Time `json:"appointmentAt,omitzero"`
	Notes           string    `json:"notes,omitempty"`
	Amount          int64     `json:"amount"`
}

// BookingStatusConfirmed tags history entries created by a verified payment.
const BookingStatusConfirmed = "confirmed"

// BookingRecord is one entry of the local booking history.
type BookingRecord struct {
	PendingBooking
	Status        string    `json:"status"`
	ConfirmedAt   time.Time `json:"confirmedAt"`
	TransactionNo string    `json:"transactionNo,omitempty"`
}

// StagePending writes the draft to short-lived storage. It expires after ttl
// unless a successful reconciliation consumes it first.
func StagePending(ctx context.Context, shortLived clientstore.Storage, booking PendingBooking, ttl time.Duration) error {
	raw, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("payment: encode pending booking: %w", err)
	}
	return clientstore.Set(ctx, shortLived, clientstore.KeyPendingBooking, string(raw), ttl)
}

// LoadPending reads the staged draft without consuming it.
func LoadPending(ctx context.Context, shortLived clientstore.Storage) (PendingBooking, error) {
	raw, err := shortLived.Get(ctx, clientstore.KeyPendingBooking)
	if errors.Is(err, clientstore.ErrNotFound) {
		return PendingBooking{}, ErrNoPendingBooking
	}
	if err != nil {
		return PendingBooking{}, err
	}
	var b PendingBooking
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return PendingBooking{}, fmt.Errorf("payment: decode pending booking: %w", err)
	}
	return b, nil
}

var errCorruptHistory = errors.New("payment: corrupt booking history")

// LoadHistory returns the local booking history, oldest first.
func LoadHistory(ctx context.Context, durable clientstore.Storage) ([]BookingRecord, error) {
	raw, err := durable.Get(ctx, clientstore.KeyBookingHistory)
	if errors.Is(err, clientstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []BookingRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, errors.Join(errCorruptHistory, err)
	}
	return records, nil
}

// appendHistory adds rec to the history as one atomic update, so concurrent
// confirmations for the same client are all kept. An undecodable history is
// replaced rather than blocking every later confirmation.
func appendHistory(ctx context.Context, durable clientstore.Storage, rec BookingRecord) error {
	return durable.Update(ctx, clientstore.KeyBookingHistory, 0, func(current string, found bool) (string, error) {
		var records []BookingRecord
		if found {
			if err := json.Unmarshal([]byte(current), &records); err != nil {
				records = nil
			}
		}
		raw, err := json.Marshal(append(records, rec))
		if err != nil {
			return "", fmt.Errorf("payment: encode booking history: %w", err)
		}
		return string(raw), nil
	})
}
