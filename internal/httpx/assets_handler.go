package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/lifecycle"
	"github.com/ariefcatur/go-asset-lifecycle/internal/logging"
)

const requestTimeout = 5 * time.Second

// SnapshotReader serves asset reads ahead of the database.
type SnapshotReader interface {
	Get(ctx context.Context, id string) (assets.Asset, bool, error)
}

// UserRegistry lets callers create the users that workflows reference.
type UserRegistry interface {
	UpsertUser(ctx context.Context, id, name string) error
}

type AssetsHandler struct {
	Engine *lifecycle.Engine
	Cache  SnapshotReader // optional
	Users  UserRegistry   // optional
	Log    logrus.FieldLogger
}

func (h *AssetsHandler) Register(root chi.Router) {
	root.Group(func(r chi.Router) {
		r.Use(h.requestLogger)
		h.routes(r)
	})
}

// requestLogger puts a logger tagged with the request id into the context.
func (h *AssetsHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := h.Log.WithFields(logrus.Fields{"request_id": middleware.GetReqID(r.Context()), "path": r.URL.Path})
		next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), l)))
	})
}

func (h *AssetsHandler) routes(r chi.Router) {
	r.Post("/assets", h.registerAsset)
	r.Get("/assets/{id}", h.getAsset)
	if h.Users != nil {
		r.Put("/users/{id}", h.putUser)
	}

	r.Route("/assignments", func(r chi.Router) {
		r.Post("/", h.createAssignment)
		r.Get("/{id}", h.getAssignment)
		r.Post("/{id}/activate", h.activateAssignment)
		r.Post("/{id}/close", h.closeAssignment)
		r.Post("/{id}/reject", h.rejectAssignment)
	})
	r.Route("/transfers", func(r chi.Router) {
		r.Post("/", h.createTransfer)
		r.Get("/{id}", h.getTransfer)
		r.Post("/{id}/complete", h.completeTransfer)
		r.Post("/{id}/reject", h.rejectTransfer)
	})
	r.Route("/maintenance", func(r chi.Router) {
		r.Post("/", h.createMaintenance)
		r.Get("/{id}", h.getMaintenance)
		r.Post("/{id}/start", h.startMaintenance)
		r.Post("/{id}/close", h.closeMaintenance)
	})
	r.Route("/disposals", func(r chi.Router) {
		r.Post("/", h.createDisposal)
		r.Get("/{id}", h.getDisposal)
		r.Post("/{id}/approve", h.approveDisposal)
		r.Post("/{id}/reject", h.rejectDisposal)
		r.Post("/{id}/complete", h.completeDisposal)
	})
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
	return false
}

// requestID prefers the body field and falls back to the Idempotency-Key
// header.
func requestID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

// respond runs op under the request timeout and writes its result.
func respond[T any](w http.ResponseWriter, r *http.Request, code int, op func(ctx context.Context) (T, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := op(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, code, res)
}

// byID adapts an engine call keyed by the {id} URL parameter.
func byID[T any](code int, fn func(ctx context.Context, id string) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		respond(w, r, code, func(ctx context.Context) (T, error) { return fn(ctx, id) })
	}
}

func (h *AssetsHandler) registerAsset(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.RegisterAssetInput
	if !decode(w, r, &in) {
		return
	}
	in.RequestID = requestID(r, in.RequestID)
	respond(w, r, http.StatusCreated, func(ctx context.Context) (assets.Asset, error) {
		return h.Engine.RegisterAsset(ctx, in)
	})
}

func (h *AssetsHandler) getAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if h.Cache != nil {
		a, ok, err := h.Cache.Get(ctx, id)
		if err != nil {
			logging.FromContext(ctx).WithFields(logrus.Fields{"asset_id": id, "error": err}).Warn("snapshot cache read failed")
		}
		if ok {
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, a)
			return
		}
	}
	a, err := h.Engine.Asset(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssetsHandler) putUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := h.Users.UpsertUser(ctx, id, body.Name); err != nil {
		logging.FromContext(ctx).WithFields(logrus.Fields{"user_id": id, "error": err}).Error("upsert user")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "name": body.Name})
}

func (h *AssetsHandler) createAssignment(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.CreateAssignmentInput
	if !decode(w, r, &in) {
		return
	}
	in.RequestID = requestID(r, in.RequestID)
	respond(w, r, http.StatusCreated, func(ctx context.Context) (lifecycle.AssignmentResult, error) {
		return h.Engine.CreateAssignment(ctx, in)
	})
}

func (h *AssetsHandler) getAssignment(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.Assignment)(w, r)
}

func (h *AssetsHandler) activateAssignment(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.ActivateAssignment)(w, r)
}

func (h *AssetsHandler) closeAssignment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Outcome assets.AssignmentStatus `json:"outcome"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Outcome == "" {
		body.Outcome = assets.AssignmentReturned
	}
	byID(http.StatusOK, func(ctx context.Context, id string) (lifecycle.AssignmentResult, error) {
		return h.Engine.CloseAssignment(ctx, id, body.Outcome)
	})(w, r)
}

func (h *AssetsHandler) rejectAssignment(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.RejectAssignment)(w, r)
}

func (h *AssetsHandler) createTransfer(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.CreateTransferInput
	if !decode(w, r, &in) {
		return
	}
	in.RequestID = requestID(r, in.RequestID)
	respond(w, r, http.StatusCreated, func(ctx context.Context) (lifecycle.TransferResult, error) {
		return h.Engine.CreateTransfer(ctx, in)
	})
}

func (h *AssetsHandler) getTransfer(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.Transfer)(w, r)
}

func (h *AssetsHandler) completeTransfer(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.CompleteTransfer)(w, r)
}

func (h *AssetsHandler) rejectTransfer(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.RejectTransfer)(w, r)
}

func (h *AssetsHandler) createMaintenance(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.CreateMaintenanceInput
	if !decode(w, r, &in) {
		return
	}
	in.RequestID = requestID(r, in.RequestID)
	respond(w, r, http.StatusCreated, func(ctx context.Context) (lifecycle.MaintenanceResult, error) {
		return h.Engine.CreateMaintenance(ctx, in)
	})
}

func (h *AssetsHandler) getMaintenance(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.Maintenance)(w, r)
}

func (h *AssetsHandler) startMaintenance(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.StartMaintenance)(w, r)
}

func (h *AssetsHandler) closeMaintenance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Outcome assets.MaintenanceStatus `json:"outcome"`
		Cost    *decimal.Decimal         `json:"cost,omitempty"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Outcome == "" {
		body.Outcome = assets.MaintenanceCompleted
	}
	byID(http.StatusOK, func(ctx context.Context, id string) (lifecycle.MaintenanceResult, error) {
		return h.Engine.CloseMaintenance(ctx, id, body.Outcome, body.Cost)
	})(w, r)
}

func (h *AssetsHandler) createDisposal(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.CreateDisposalInput
	if !decode(w, r, &in) {
		return
	}
	in.RequestID = requestID(r, in.RequestID)
	respond(w, r, http.StatusCreated, func(ctx context.Context) (lifecycle.DisposalResult, error) {
		return h.Engine.CreateDisposal(ctx, in)
	})
}

func (h *AssetsHandler) getDisposal(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.Disposal)(w, r)
}

func (h *AssetsHandler) approveDisposal(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.ApproveDisposal)(w, r)
}

func (h *AssetsHandler) rejectDisposal(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.RejectDisposal)(w, r)
}

func (h *AssetsHandler) completeDisposal(w http.ResponseWriter, r *http.Request) {
	byID(http.StatusOK, h.Engine.CompleteDisposal)(w, r)
}
