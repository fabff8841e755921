package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/lending-gateway/internal/metrics"
	"github.com/atmx/lending-gateway/internal/model"
	"github.com/atmx/lending-gateway/internal/validate"
)

// Journal records executed operations. store.Store satisfies it.
type Journal interface {
	InsertOperation(ctx context.Context, e *model.JournalEntry) error
}

// Notifier fans finished operations out to live subscribers.
type Notifier interface {
	PublishOperation(e model.JournalEntry)
}

// Result is the outcome of one dispatched operation plus its journal id.
type Result struct {
	OperationID string
	Outcome     model.Outcome
}

// Service is the use-case layer shared by the supply, borrow and repay
// routes.
type Service struct {
	registry *Registry
	journal  Journal
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a dispatcher. journal and notifier may be nil.
func NewService(registry *Registry, journal Journal, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		journal:  journal,
		notifier: notifier,
		logger:   logger.With("component", "dispatch"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Registry exposes the network registry.
func (s *Service) Registry() *Registry { return s.registry }

// Execute checks the network, resolves a symbolic asset, validates and runs
// the operation. Only an unsupported network or a validation failure is
// returned as an error; both happen before any network call. Every other
// failure is carried by the outcome.
func (s *Service) Execute(ctx context.Context, kind model.Kind, req model.OperationRequest) (*Result, error) {
	exec, err := s.registry.Executor(req.ChainID)
	if err != nil {
		return nil, err
	}
	network, err := s.registry.Network(req.ChainID)
	if err != nil {
		return nil, err
	}

	req.AssetAddress = network.ResolveAsset(req.AssetAddress)
	op, err := validate.Operation(kind, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome := exec.Execute(ctx, op)
	metrics.OperationLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	metrics.OperationsTotal.WithLabelValues(string(kind), outcome.Status).Inc()

	entry := model.JournalEntry{
		ID:          uuid.New().String(),
		Kind:        kind,
		ChainID:     op.ChainID,
		Asset:       op.Asset.Hex(),
		User:        op.User.Hex(),
		Amount:      op.Amount,
		TxHash:      outcome.TxHash,
		Status:      outcome.Status,
		BlockNumber: outcome.BlockNumber,
		GasUsed:     outcome.GasUsed,
		Message:     outcome.Message,
		Timestamp:   s.now(),
	}

	logFn := s.logger.Info
	if !outcome.Succeeded() {
		logFn = s.logger.Warn
	}
	logFn("operation finished",
		"id", entry.ID,
		"kind", kind,
		"asset", entry.Asset,
		"user", entry.User,
		"amount", entry.Amount,
		"status", outcome.Status,
		"tx", outcome.TxHash,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	// The outcome is already final; a journal failure must not change it.
	if s.journal != nil {
		if err := s.journal.InsertOperation(context.WithoutCancel(ctx), &entry); err != nil {
			s.logger.Error("journal insert failed", "id", entry.ID, "error", err)
		}
	}
	if s.notifier != nil {
		s.notifier.PublishOperation(entry)
	}

	return &Result{OperationID: entry.ID, Outcome: outcome}, nil
}
