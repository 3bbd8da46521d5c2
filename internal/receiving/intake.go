package receiving

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/ledger"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

const intakeScope = "receiving.intake"

// Intake applies a direct intake or adjustment batch. Every ledger entry of
// the batch carries one generated RD- reference.
func (s *Service) Intake(ctx context.Context, input IntakeInput) (Result, error) {
	res := Result{
		Reference: shared.NewBatchReference(shared.DirectIntakePrefix),
		Path:      PathIntake,
		Phase:     PhaseValidating,
	}
	specs, err := s.validateIntake(ctx, input)
	if err != nil {
		return s.abort(res, err)
	}
	if _, err := s.claim(ctx, input.IdempotencyKey, intakeScope, res.Reference); err != nil {
		return s.abort(res, err)
	}

	res.Phase = PhaseApplying
	notes := intakeNotes(input)
	s.applyAll(context.WithoutCancel(ctx), &res, specs, func(spec lineSpec) ledger.Reference {
		kind := ledger.RefDirectIntake
		if spec.Adjustment {
			kind = ledger.RefAdjustment
		}
		return ledger.Reference{Kind: kind, ID: res.Reference, Number: res.Reference}
	}, notes)

	res.Phase = PhaseDone
	s.logger.Info("intake applied",
		slog.String("reference", res.Reference),
		slog.Int("applied", res.Applied),
		slog.Int("lines", len(res.Lines)))
	return res, nil
}

func (s *Service) validateIntake(ctx context.Context, input IntakeInput) ([]lineSpec, error) {
	if len(input.Lines) == 0 {
		return nil, shared.Invalid(ErrNoLines, "intake")
	}
	specs := make([]lineSpec, 0, len(input.Lines))
	for i, line := range input.Lines {
		code := strings.TrimSpace(line.ItemCode)
		if code == "" {
			return nil, shared.Invalid(ErrItemCodeRequired, "line %d", i+1)
		}
		if !line.Kind.Valid() {
			return nil, shared.Invalid(catalog.ErrInvalidKind, "line %d: %q", i+1, line.Kind)
		}
		if !line.Adjustment && line.QuantityDelta.IsNegative() {
			return nil, shared.Invalid(ErrNegativeReceipt, "line %d: %s %s", i+1, code, line.QuantityDelta)
		}
		if (line.UnitCost.Valid && line.UnitCost.Decimal.IsNegative()) ||
			(line.UnitSellingPrice.Valid && line.UnitSellingPrice.Decimal.IsNegative()) {
			return nil, shared.Invalid(ErrInvalidPrice, "line %d: %s", i+1, code)
		}
		spec := lineSpec{
			Index:       i,
			ItemCode:    code,
			Kind:        line.Kind,
			Delta:       line.QuantityDelta,
			UnitCost:    line.UnitCost,
			Selling:     line.UnitSellingPrice,
			Adjustment:  line.Adjustment,
			Description: strings.TrimSpace(line.Description),
			Unit:        line.Unit,
			Group:       line.Group,
		}
		_, err := s.catalog.Get(ctx, code, line.Kind)
		switch {
		case err == nil:
		case errors.Is(err, catalog.ErrItemNotFound):
			if line.Adjustment {
				return nil, shared.Invalid(ErrUnknownItem, "line %d: %s cannot be adjusted", i+1, code)
			}
			if line.Kind != catalog.KindTracked || spec.Description == "" {
				return nil, shared.Invalid(ErrUnknownItem, "line %d: %s needs a description to be created as a tracked item", i+1, code)
			}
			spec.Create = true
		default:
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func intakeNotes(input IntakeInput) string {
	parts := make([]string, 0, 3)
	if n := strings.TrimSpace(input.Notes); n != "" {
		parts = append(parts, n)
	}
	if c := strings.TrimSpace(input.Counterparty); c != "" {
		parts = append(parts, "from "+c)
	}
	if r := strings.TrimSpace(input.ExternalRef); r != "" {
		parts = append(parts, "ref "+r)
	}
	return strings.Join(parts, "; ")
}
