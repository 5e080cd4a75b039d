package rates

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app/audit"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	domainrules "rentdesk/internal/domain/rules"
)

const (
	createRuleKey = "rates.rule.create"
	updateRuleKey = "rates.rule.update"
	deleteRuleKey = "rates.rule.delete"
	listRulesKey  = "rates.rule.list"
)

type CreateRuleCommand struct {
	ActorID string `validate:"required"`
	Rule    dto.Rule
}

func (c CreateRuleCommand) Key() string { return createRuleKey }

func (c CreateRuleCommand) Actor() string { return c.ActorID }

type UpdateRuleCommand struct {
	ActorID string `validate:"required"`
	RuleID  string `validate:"required"`
	Rule    dto.Rule
}

func (c UpdateRuleCommand) Key() string { return updateRuleKey }

func (c UpdateRuleCommand) Actor() string { return c.ActorID }

type DeleteRuleCommand struct {
	ActorID string `validate:"required"`
	RuleID  string `validate:"required"`
}

func (c DeleteRuleCommand) Key() string { return deleteRuleKey }

func (c DeleteRuleCommand) Actor() string { return c.ActorID }

// RuleHandlers validate on save; an invalid rule leaves the stored set untouched.
type RuleHandlers struct {
	Audit audit.Logger
	Clock func() time.Time
	IDs   func() string
}

func (h *RuleHandlers) Create(ctx context.Context, cmd CreateRuleCommand) (dto.Rule, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return dto.Rule{}, uow.ErrUnitOfWorkMissing
	}
	rule, err := cmd.Rule.ToRule()
	if err != nil {
		return dto.Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = domainrules.RuleID(h.newID())
	}
	if _, err := unit.RateRules().ByID(ctx, rule.ID); err == nil {
		return dto.Rule{}, availability.Invalid("rule %s already exists", rule.ID)
	}
	rule.CreatedAt = now(h.Clock)
	rule.UpdatedAt = rule.CreatedAt
	if err := rule.Validate(); err != nil {
		return dto.Rule{}, err
	}
	if err := unit.RateRules().Save(ctx, &rule); err != nil {
		return dto.Rule{}, err
	}
	after := dto.MapRule(&rule)
	h.log(ctx, cmd.ActorID, string(rule.ID), "create", nil, after)
	return after, nil
}

func (h *RuleHandlers) Update(ctx context.Context, cmd UpdateRuleCommand) (dto.Rule, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return dto.Rule{}, uow.ErrUnitOfWorkMissing
	}
	id := domainrules.RuleID(cmd.RuleID)
	current, err := unit.RateRules().ByID(ctx, id)
	if err != nil {
		return dto.Rule{}, ruleNotFound(id, err)
	}
	rule, err := cmd.Rule.ToRule()
	if err != nil {
		return dto.Rule{}, err
	}
	rule.ID = id
	rule.CreatedAt = current.CreatedAt
	rule.UpdatedAt = now(h.Clock)
	if err := rule.Validate(); err != nil {
		return dto.Rule{}, err
	}
	if err := unit.RateRules().Save(ctx, &rule); err != nil {
		return dto.Rule{}, err
	}
	after := dto.MapRule(&rule)
	h.log(ctx, cmd.ActorID, string(id), "update", dto.MapRule(current), after)
	return after, nil
}

func (h *RuleHandlers) Delete(ctx context.Context, cmd DeleteRuleCommand) (DeleteResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return DeleteResult{}, uow.ErrUnitOfWorkMissing
	}
	id := domainrules.RuleID(cmd.RuleID)
	current, err := unit.RateRules().ByID(ctx, id)
	if err != nil {
		return DeleteResult{}, ruleNotFound(id, err)
	}
	if err := unit.RateRules().Delete(ctx, id); err != nil {
		return DeleteResult{}, ruleNotFound(id, err)
	}
	h.log(ctx, cmd.ActorID, string(id), "delete", dto.MapRule(current), nil)
	return DeleteResult{ID: cmd.RuleID, Deleted: true}, nil
}

func (h *RuleHandlers) log(ctx context.Context, actorID, id, action string, before, after any) {
	if h.Audit != nil {
		h.Audit.LogChange(ctx, actorID, "rate_rule", id, action, before, after)
	}
}

func (h *RuleHandlers) newID() string {
	if h.IDs != nil {
		return h.IDs()
	}
	return uuid.NewString()
}

type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type ListRulesQuery struct {
	ActiveOnly bool
}

func (ListRulesQuery) Key() string { return listRulesKey }

type ListRulesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListRulesHandler) Handle(ctx context.Context, q ListRulesQuery) (dto.RuleCollection, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.RuleCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	var list []domainrules.Rule
	if q.ActiveOnly {
		list, err = unit.RateRules().ListActive(execCtx)
	} else {
		list, err = unit.RateRules().List(execCtx)
	}
	if err != nil {
		return dto.RuleCollection{}, err
	}
	out := dto.RuleCollection{Items: make([]dto.Rule, 0, len(list))}
	for i := range list {
		out.Items = append(out.Items, dto.MapRule(&list[i]))
	}
	return out, nil
}

func ruleNotFound(id domainrules.RuleID, err error) error {
	if errors.Is(err, domainrules.ErrRuleNotFound) {
		return availability.NotFound("rate rule", string(id))
	}
	return err
}

var _ queries.Handler[ListRulesQuery, dto.RuleCollection] = (*ListRulesHandler)(nil)
