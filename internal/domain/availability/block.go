package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/units"
)

var ErrBlockNotFound = errors.New("availability: block not found")

type BlockID string

// Block takes a date range of a unit off sale (owner stay, maintenance).
type Block struct {
	ID        BlockID
	UnitID    units.UnitID
	Range     daterange.DateRange
	Reason    string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

type BlockRepository interface {
	ByID(ctx context.Context, id BlockID) (*Block, error)
	Save(ctx context.Context, block *Block) error
	Delete(ctx context.Context, id BlockID) error
	// ListByUnit returns the blocks of the unit overlapping window, ordered by start.
	ListByUnit(ctx context.Context, unitID units.UnitID, window daterange.DateRange) ([]*Block, error)
}

type BlockParams struct {
	ID        BlockID
	UnitID    units.UnitID
	Range     daterange.DateRange
	Reason    string
	CreatedBy string
	Now       time.Time
}

func NewBlock(params BlockParams) (*Block, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("availability: block id required")
	}
	if params.UnitID == "" {
		return nil, errors.New("availability: unit id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	b := &Block{
		ID:        params.ID,
		UnitID:    params.UnitID,
		Range:     params.Range,
		Reason:    strings.TrimSpace(params.Reason),
		CreatedBy: params.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.Record(CalendarBlocked{UnitID: b.UnitID, BlockID: b.ID, Range: b.Range, Reason: b.Reason, At: now})
	return b, nil
}

func (b *Block) Move(r daterange.DateRange, now time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	previous := b.Range
	b.Range = r
	b.UpdatedAt = now.UTC()
	b.Record(CalendarBlockMoved{UnitID: b.UnitID, BlockID: b.ID, From: previous, To: r, At: b.UpdatedAt})
	return nil
}

// Release records the removal; the repository deletes the row.
func (b *Block) Release(now time.Time) {
	b.Record(CalendarReleased{UnitID: b.UnitID, BlockID: b.ID, Range: b.Range, At: now.UTC()})
}
