package dto

import (
	"time"

	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type GuestDTO struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Booking is the staff view of a booking and the audit snapshot shape.
type Booking struct {
	ID          string     `json:"id"`
	UnitID      string     `json:"unit_id"`
	CheckIn     string     `json:"checkin"`
	CheckOut    string     `json:"checkout"`
	Nights      int        `json:"nights"`
	Status      string     `json:"status"`
	Guest       GuestDTO   `json:"guest"`
	Adults      int        `json:"adults"`
	Children    int        `json:"children"`
	Total       MoneyDTO   `json:"total"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	out := Booking{
		ID:        string(b.ID),
		UnitID:    string(b.UnitID),
		CheckIn:   daterange.FormatDay(b.Range.CheckIn),
		CheckOut:  daterange.FormatDay(b.Range.CheckOut),
		Nights:    b.Range.Nights(),
		Status:    string(b.Status),
		Guest:     GuestDTO{Name: b.Guest.Name, Email: b.Guest.Email, Phone: b.Guest.Phone},
		Adults:    b.Adults,
		Children:  b.Children,
		Total:     MapMoney(b.Total),
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if !b.CancelledAt.IsZero() {
		at := b.CancelledAt
		out.CancelledAt = &at
	}
	return out
}
