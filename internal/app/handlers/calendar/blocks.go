package calendar

import (
	"context"
	"time"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	calendarsvc "rentdesk/internal/app/services/calendar"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/units"
)

const (
	createBlockKey     = "calendar.block.create"
	rescheduleBlockKey = "calendar.block.reschedule"
	deleteBlockKey     = "calendar.block.delete"
)

type CreateBlockCommand struct {
	lockedWrite
	ActorID string `validate:"required"`
	BlockID string
	UnitID  string    `validate:"required"`
	Start   time.Time `validate:"required"`
	End     time.Time `validate:"required"`
	Reason  string    `validate:"max=500"`
}

func (c CreateBlockCommand) Key() string { return createBlockKey }

func (c CreateBlockCommand) Actor() string { return c.ActorID }

type CreateBlockHandler struct {
	Service *calendarsvc.Service
}

func (h *CreateBlockHandler) Handle(ctx context.Context, cmd CreateBlockCommand) (dto.Block, error) {
	if h.Service == nil {
		return dto.Block{}, ErrServiceRequired
	}
	b, err := h.Service.CreateBlock(ctx, calendarsvc.CreateBlockParams{
		BlockID: cmd.BlockID,
		UnitID:  units.UnitID(cmd.UnitID),
		Start:   cmd.Start,
		End:     cmd.End,
		Reason:  cmd.Reason,
		ActorID: cmd.ActorID,
	})
	if err != nil {
		return dto.Block{}, err
	}
	return dto.MapBlock(b), nil
}

type RescheduleBlockCommand struct {
	lockedWrite
	ActorID string    `validate:"required"`
	BlockID string    `validate:"required"`
	Start   time.Time `validate:"required"`
	End     time.Time `validate:"required"`
}

func (c RescheduleBlockCommand) Key() string { return rescheduleBlockKey }

func (c RescheduleBlockCommand) Actor() string { return c.ActorID }

type RescheduleBlockHandler struct {
	Service *calendarsvc.Service
}

func (h *RescheduleBlockHandler) Handle(ctx context.Context, cmd RescheduleBlockCommand) (dto.Block, error) {
	if h.Service == nil {
		return dto.Block{}, ErrServiceRequired
	}
	b, err := h.Service.RescheduleBlock(ctx, calendarsvc.RescheduleBlockParams{
		BlockID: availability.BlockID(cmd.BlockID),
		Start:   cmd.Start,
		End:     cmd.End,
		ActorID: cmd.ActorID,
	})
	if err != nil {
		return dto.Block{}, err
	}
	return dto.MapBlock(b), nil
}

type DeleteBlockCommand struct {
	lockedWrite
	ActorID string `validate:"required"`
	BlockID string `validate:"required"`
}

func (c DeleteBlockCommand) Key() string { return deleteBlockKey }

func (c DeleteBlockCommand) Actor() string { return c.ActorID }

type DeleteBlockResult struct {
	BlockID string `json:"block_id"`
	Deleted bool   `json:"deleted"`
}

type DeleteBlockHandler struct {
	Service *calendarsvc.Service
}

func (h *DeleteBlockHandler) Handle(ctx context.Context, cmd DeleteBlockCommand) (DeleteBlockResult, error) {
	if h.Service == nil {
		return DeleteBlockResult{}, ErrServiceRequired
	}
	if err := h.Service.DeleteBlock(ctx, availability.BlockID(cmd.BlockID), cmd.ActorID); err != nil {
		return DeleteBlockResult{}, err
	}
	return DeleteBlockResult{BlockID: cmd.BlockID, Deleted: true}, nil
}

var (
	_ commands.Handler[CreateBlockCommand, dto.Block]         = (*CreateBlockHandler)(nil)
	_ commands.Handler[RescheduleBlockCommand, dto.Block]     = (*RescheduleBlockHandler)(nil)
	_ commands.Handler[DeleteBlockCommand, DeleteBlockResult] = (*DeleteBlockHandler)(nil)
)
