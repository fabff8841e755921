// Package api provides the HTTP handlers for supplying, borrowing and
// repaying through the lending pool and for querying account health.
//
// Chain integers leave this package as decimal strings, never float64.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/atmx/lending-gateway/internal/chain"
	"github.com/atmx/lending-gateway/internal/dispatch"
	"github.com/atmx/lending-gateway/internal/model"
	"github.com/atmx/lending-gateway/internal/store"
	"github.com/atmx/lending-gateway/internal/validate"
)

// ServiceName is reported by /health.
const ServiceName = "Aave Lending Gateway (Base Sepolia)"

// Positions answers account metrics queries. *position.Service satisfies it.
type Positions interface {
	Position(ctx context.Context, user common.Address) (*model.AccountPosition, error)
	Collateral(ctx context.Context, user common.Address) (*model.CollateralInfo, error)
	Debt(ctx context.Context, user common.Address) (*model.DebtInfo, error)
	BorrowLimits(ctx context.Context, user common.Address) (*model.BorrowLimits, error)
}

// Service holds the HTTP handlers.
type Service struct {
	ops       *dispatch.Service
	positions Positions
	journal   store.Store
}

// NewService creates the handler set. journal may be nil, in which case
// the operation routes answer 404.
func NewService(ops *dispatch.Service, positions Positions, journal store.Store) *Service {
	return &Service{ops: ops, positions: positions, journal: journal}
}

// Routes mounts every route under r. hub may be nil.
func (s *Service) Routes(r chi.Router, hub *WSHub) {
	r.Get("/health", s.Health)
	r.Route("/api", func(r chi.Router) {
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}

		r.Post("/supply", s.Supply)
		r.Post("/borrow", s.Borrow)
		r.Post("/repay", s.Repay)

		r.Get("/borrow/available", s.BorrowAvailable)
		r.Get("/borrow/limits/{userAddress}", s.BorrowLimits)
		r.Get("/account/{userAddress}", s.Account)
		r.Get("/supply/collateral/{userAddress}", s.Collateral)
		r.Get("/repay/debt/{userAddress}", s.Debt)
		r.Get("/assets", s.Assets)

		r.Get("/operations", s.ListOperations)
		r.Get("/operations/{operationID}", s.GetOperation)
	})
}

// --- Request/Response types ---

// OperationResponse is the JSON body returned from the write routes.
type OperationResponse struct {
	Success     bool   `json:"success"`
	OperationID string `json:"operationId"`
	TxHash      string `json:"txHash"`
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
	GasUsed     string `json:"gasUsed"`
	Message     string `json:"message"`
}

// --- Write handlers ---

// Supply handles POST /api/supply
func (s *Service) Supply(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, model.KindSupply)
}

// Borrow handles POST /api/borrow
func (s *Service) Borrow(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, model.KindBorrow)
}

// Repay handles POST /api/repay. An amount of "-1" repays the full debt.
func (s *Service) Repay(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, model.KindRepay)
}

func (s *Service) execute(w http.ResponseWriter, r *http.Request, kind model.Kind) {
	var req model.OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.ops.Execute(r.Context(), kind, req)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, OperationResponse{
		Success:     res.Outcome.Succeeded(),
		OperationID: res.OperationID,
		TxHash:      res.Outcome.TxHash,
		Status:      res.Outcome.Status,
		BlockNumber: res.Outcome.BlockNumber,
		GasUsed:     res.Outcome.GasUsed,
		Message:     res.Outcome.Message,
	})
}

// --- Account queries ---

// Account handles GET /api/account/{userAddress}
func (s *Service) Account(w http.ResponseWriter, r *http.Request) {
	user, ok := userParam(w, r)
	if !ok {
		return
	}
	pos, err := s.positions.Position(r.Context(), user)
	if err != nil {
		s.queryFailed(w, "account", user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "position": pos})
}

// Collateral handles GET /api/supply/collateral/{userAddress}
func (s *Service) Collateral(w http.ResponseWriter, r *http.Request) {
	user, ok := userParam(w, r)
	if !ok {
		return
	}
	info, err := s.positions.Collateral(r.Context(), user)
	if err != nil {
		s.queryFailed(w, "collateral", user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "collateral": info})
}

// Debt handles GET /api/repay/debt/{userAddress}
func (s *Service) Debt(w http.ResponseWriter, r *http.Request) {
	user, ok := userParam(w, r)
	if !ok {
		return
	}
	info, err := s.positions.Debt(r.Context(), user)
	if err != nil {
		s.queryFailed(w, "debt", user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "debt": info})
}

// BorrowLimits handles GET /api/borrow/limits/{userAddress}
func (s *Service) BorrowLimits(w http.ResponseWriter, r *http.Request) {
	user, ok := userParam(w, r)
	if !ok {
		return
	}
	limits, err := s.positions.BorrowLimits(r.Context(), user)
	if err != nil {
		s.queryFailed(w, "borrow limits", user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "limits": limits})
}

// BorrowAvailable handles GET /api/borrow/available. It is a placeholder
// kept for client compatibility.
func (s *Service) BorrowAvailable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "available": []string{}})
}

// Assets handles GET /api/assets
func (s *Service) Assets(w http.ResponseWriter, _ *http.Request) {
	networks := make(map[string][]string)
	names := []string{}
	for _, n := range s.ops.Registry().Networks() {
		networks[n.Name] = n.Symbols()
		names = append(names, n.Name)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"networks":          networks,
		"usage":             "Use the qualified symbol (e.g. USDC.BASE-SEPOLIA), the bare symbol, or the token address (0x...)",
		"availableNetworks": names,
	})
}

// Health handles GET /health
func (s *Service) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   ServiceName,
	})
}

// --- Journal ---

// GetOperation handles GET /api/operations/{operationID}
func (s *Service) GetOperation(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, "operation journal disabled", http.StatusNotFound)
		return
	}
	id := chi.URLParam(r, "operationID")
	e, err := s.journal.GetOperation(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			writeError(w, "operation not found", http.StatusNotFound)
			return
		}
		slog.Error("get operation failed", "id", id, "err", err)
		writeError(w, "failed to get operation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "operation": e})
}

// ListOperations handles GET /api/operations?user=0x...&limit=n
func (s *Service) ListOperations(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, "operation journal disabled", http.StatusNotFound)
		return
	}
	user, err := validate.Address("user", r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
	}
	entries, err := s.journal.ListOperationsByUser(r.Context(), user.Hex(), limit)
	if err != nil {
		slog.Error("list operations failed", "user", user.Hex(), "err", err)
		writeError(w, "failed to list operations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "operations": entries})
}

// --- Helpers ---

func userParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	user, err := validate.Address("userAddress", chi.URLParam(r, "userAddress"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return common.Address{}, false
	}
	return user, true
}

func (s *Service) queryFailed(w http.ResponseWriter, what string, user common.Address, err error) {
	slog.Error(what+" query failed", "user", user.Hex(), "err", err)
	writeError(w, err.Error(), statusFor(err))
}

// statusFor maps an error to its HTTP status: caller mistakes are 400,
// upstream chain failures 502, everything else 500.
func statusFor(err error) int {
	var netErr *dispatch.UnsupportedNetworkError
	var readErr *chain.ReadError
	switch {
	case errors.As(err, &netErr), errors.Is(err, validate.ErrInvalid):
		return http.StatusBadRequest
	case errors.As(err, &readErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]interface{}{"success": false, "message": message})
}
