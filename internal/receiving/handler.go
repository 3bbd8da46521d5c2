package receiving

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/ledger"
	"github.com/odyssey-erp/odyssey-receiving/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-receiving/internal/procurement"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// IdempotencyHeader carries the optional client request key.
const IdempotencyHeader = "Idempotency-Key"

// SnapshotReader serves cached order remainders.
type SnapshotReader interface {
	Snapshot(ctx context.Context, orderID string) (procurement.Snapshot, error)
}

// Handler wires HTTP endpoints for receiving.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	snapshots SnapshotReader
	entries   ledger.Reader
	items     catalog.Store
	validator *validator.Validate
}

// NewHandler constructs the receiving handler.
func NewHandler(logger *slog.Logger, service *Service, snapshots SnapshotReader, entries ledger.Reader, items catalog.Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{logger: logger, service: service, snapshots: snapshots, entries: entries, items: items, validator: v}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{orderID}/receipts", h.handleReceiveOrder)
	r.Get("/orders/{orderID}/remainders", h.handleRemainders)
	r.Post("/intake", h.handleIntake)
	r.Get("/ledger", h.handleLedgerByItem)
	r.Get("/ledger/{refKind}/{refID}", h.handleLedgerByReference)
	r.Get("/catalog/{kind}/{code}", h.handleItem)
}

func (h *Handler) handleReceiveOrder(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	orderID := chi.URLParam(r, "orderID")
	res, err := h.service.ReceiveOrder(r.Context(), req.input(orderID, r.Header.Get(IdempotencyHeader)))
	if err != nil {
		h.respondAborted(w, err)
		return
	}
	httpx.JSON(w, resultStatus(res), res)
}

func (h *Handler) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Intake(r.Context(), req.input(r.Header.Get(IdempotencyHeader)))
	if err != nil {
		h.respondAborted(w, err)
		return
	}
	httpx.JSON(w, resultStatus(res), res)
}

func (h *Handler) handleRemainders(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Snapshot(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondAborted(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) handleLedgerByItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}
	filter := ledger.Filter{ItemCode: strings.TrimSpace(q.Get("item_code")), Kind: catalog.KindTracked, Limit: 200}
	if filter.ItemCode == "" {
		fields["item_code"] = "required"
	}
	if raw := q.Get("kind"); raw != "" {
		kind, err := catalog.ParseKind(raw)
		if err != nil {
			fields["kind"] = "must be tracked or untracked"
		}
		filter.Kind = kind
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 1000 {
			fields["limit"] = "must be between 1 and 1000"
		}
		filter.Limit = limit
	}
	for name, target := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				fields[name] = "must be RFC3339"
			}
			*target = t
		}
	}
	if len(fields) > 0 {
		httpx.FieldProblem(w, fields)
		return
	}
	entries, err := h.entries.ListByItem(r.Context(), filter)
	if err != nil {
		h.respondAborted(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_code": filter.ItemCode,
		"kind":      filter.Kind,
		"net":       ledger.Replay(entries),
		"entries":   entries,
	})
}

func (h *Handler) handleLedgerByReference(w http.ResponseWriter, r *http.Request) {
	kind := ledger.RefKind(strings.ToUpper(chi.URLParam(r, "refKind")))
	if !kind.Valid() {
		httpx.FieldProblem(w, map[string]string{"ref_kind": "unknown reference kind"})
		return
	}
	entries, err := h.entries.ListByReference(r.Context(), kind, chi.URLParam(r, "refID"))
	if err != nil {
		h.respondAborted(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ref_kind": kind, "ref_id": chi.URLParam(r, "refID"), "entries": entries})
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	kind, err := catalog.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "code"), kind)
	if err != nil {
		h.respondAborted(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newItemView(item))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			httpx.RespondError(w, err)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fieldErr := range verrs {
			fields[fieldErr.Namespace()] = fieldErr.Tag()
		}
		httpx.FieldProblem(w, fields)
		return false
	}
	return true
}

func (h *Handler) respondAborted(w http.ResponseWriter, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrConflict) {
		h.logger.Error("receiving request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func resultStatus(res Result) int {
	if res.Complete() {
		return http.StatusCreated
	}
	return http.StatusMultiStatus
}
