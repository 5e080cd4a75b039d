package units

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/shared/money"
)

var (
	ErrUnitNotFound = errors.New("units: not found")
	ErrIDRequired   = errors.New("units: id is required")
	ErrNameRequired = errors.New("units: name is required")
	ErrCapacity     = errors.New("units: capacity must be at least 1")
	ErrNightlyRate  = errors.New("units: base nightly price must be non-negative")
)

type UnitID string
type PropertyID string

// Unit is a rentable unit with its base nightly price in minor units.
type Unit struct {
	ID          UnitID
	PropertyID  PropertyID
	Name        string
	Capacity    int
	BaseNightly money.Money
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id UnitID) (*Unit, error)
	Save(ctx context.Context, unit *Unit) error
	List(ctx context.Context) ([]*Unit, error)
}

type Params struct {
	ID          UnitID
	PropertyID  PropertyID
	Name        string
	Capacity    int
	BaseNightly money.Money
	Now         time.Time
}

func NewUnit(params Params) (*Unit, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if err := validate(params); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	u := &Unit{
		ID:          params.ID,
		PropertyID:  params.PropertyID,
		Name:        strings.TrimSpace(params.Name),
		Capacity:    params.Capacity,
		BaseNightly: params.BaseNightly,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	u.Record(UnitSaved{UnitID: u.ID, BaseNightly: u.BaseNightly, Capacity: u.Capacity, At: now})
	return u, nil
}

// Update replaces the mutable attributes of the unit.
func (u *Unit) Update(params Params) error {
	if err := validate(params); err != nil {
		return err
	}
	u.PropertyID = params.PropertyID
	u.Name = strings.TrimSpace(params.Name)
	u.Capacity = params.Capacity
	u.BaseNightly = params.BaseNightly
	u.UpdatedAt = params.Now.UTC()
	u.Record(UnitSaved{UnitID: u.ID, BaseNightly: u.BaseNightly, Capacity: u.Capacity, At: u.UpdatedAt})
	return nil
}

// Fits reports whether the unit sleeps the given party.
func (u *Unit) Fits(guests int) bool {
	return guests <= u.Capacity
}

func validate(params Params) error {
	if strings.TrimSpace(params.Name) == "" {
		return ErrNameRequired
	}
	if params.Capacity < 1 {
		return ErrCapacity
	}
	if params.BaseNightly.Amount < 0 {
		return ErrNightlyRate
	}
	if len(params.BaseNightly.Currency) != 3 {
		return money.ErrInvalidCurrency
	}
	return nil
}

type UnitSaved struct {
	UnitID      UnitID
	BaseNightly money.Money
	Capacity    int
	At          time.Time
}

func (e UnitSaved) EventName() string     { return "unit.saved" }
func (e UnitSaved) AggregateID() string   { return string(e.UnitID) }
func (e UnitSaved) OccurredAt() time.Time { return e.At }
