package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/redisx"
	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	HeaderClientID       = "X-Client-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

type ArrivalsReq struct {
	Arrivals []stock.Arrival `json:"arrivals" validate:"dive"`
}

type ArrivalsResp struct {
	Updated []stock.Record `json:"updated"`
}

type ImportReq struct {
	Items []stock.Fields `json:"items" validate:"dive"`
}

type ImportResp struct {
	Processed int `json:"processed"`
}

type ExportResp struct {
	ExportedAt time.Time      `json:"exported_at"`
	Records    []stock.Record `json:"records"`
}

type StockHandler struct {
	Service *stock.Service
	Idem    *redisx.Idempotency // nil disables Idempotency-Key handling
	Log     *zap.Logger

	validate *validator.Validate
}

func NewStockHandler(svc *stock.Service, idem *redisx.Idempotency, log *zap.Logger) *StockHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockHandler{Service: svc, Idem: idem, Log: log, validate: validator.New()}
}

func (h *StockHandler) Register(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Post("/items", h.createItem)
	r.Get("/items/{id}", h.getItem)
	r.Put("/items/{id}", h.updateItem)
	r.Delete("/items/{id}", h.deleteItem)
	r.Post("/arrivals", h.applyArrivals)
	r.Post("/import", h.importItems)
	r.Get("/order-list", h.orderList)
	r.Get("/export", h.export)
}

func origin(r *http.Request) string { return strings.TrimSpace(r.Header.Get(HeaderClientID)) }

// decode reads a JSON body and runs struct validation. It answers the
// request itself on failure.
func (h *StockHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
			}
			problem(w, http.StatusBadRequest, "Validation Failed", strings.Join(fields, "; "))
			return false
		}
		problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// claim takes the request's Idempotency-Key for op. The returned release
// frees the key and must be called if the mutation fails.
func (h *StockHandler) claim(ctx context.Context, r *http.Request, op string) (release func(), err error) {
	noop := func() {}
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if h.Idem == nil || key == "" {
		return noop, nil
	}
	err = h.Idem.Claim(ctx, op, key, middleware.GetReqID(ctx))
	if errors.Is(err, redisx.ErrDuplicateRequest) {
		return noop, err
	}
	if err != nil {
		// redis down: serve the request without the guard
		h.Log.Warn("idempotency claim failed", zap.String("op", op), zap.Error(err))
		return noop, nil
	}
	return func() {
		if err := h.Idem.Release(context.WithoutCancel(ctx), op, key); err != nil {
			h.Log.Warn("idempotency release failed", zap.String("op", op), zap.Error(err))
		}
	}, nil
}

func (h *StockHandler) listItems(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Service.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *StockHandler) getItem(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *StockHandler) createItem(w http.ResponseWriter, r *http.Request) {
	var f stock.Fields
	if !h.decode(w, r, &f) {
		return
	}
	rec, err := h.Service.Create(r.Context(), f, origin(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *StockHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var f stock.Fields
	if !h.decode(w, r, &f) {
		return
	}
	rec, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), f, origin(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *StockHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id"), origin(r)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StockHandler) applyArrivals(w http.ResponseWriter, r *http.Request) {
	var req ArrivalsReq
	if !h.decode(w, r, &req) {
		return
	}
	release, err := h.claim(r.Context(), r, "arrivals")
	if err != nil {
		respondError(w, err)
		return
	}
	updated, err := h.Service.ApplyArrivals(r.Context(), req.Arrivals, origin(r))
	if err != nil {
		release()
		respondError(w, err)
		return
	}
	if updated == nil {
		updated = []stock.Record{}
	}
	writeJSON(w, http.StatusOK, ArrivalsResp{Updated: updated})
}

func (h *StockHandler) importItems(w http.ResponseWriter, r *http.Request) {
	var req ImportReq
	if !h.decode(w, r, &req) {
		return
	}
	release, err := h.claim(r.Context(), r, "import")
	if err != nil {
		respondError(w, err)
		return
	}
	n, err := h.Service.Import(r.Context(), req.Items, origin(r))
	if err != nil {
		release()
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResp{Processed: n})
}

func (h *StockHandler) orderList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Service.OrderList(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *StockHandler) export(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Service.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	now := time.Now().UTC()
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="stock-%s.json"`, now.Format("2006-01-02")))
	writeJSON(w, http.StatusOK, ExportResp{ExportedAt: now, Records: rs})
}
