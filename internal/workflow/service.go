package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ronappleton/logistics-orchestrator/internal/metrics"
)

// SubmitRequest is the submission payload. RequestID is optional; one is
// generated when absent. Resubmitting an id requires a reset first.
type SubmitRequest struct {
	RequestID   string `json:"request_id,omitempty"`
	PartNumber  string `json:"part_number"`
	Quantity    int    `json:"quantity"`
	Destination string `json:"destination"`
	Priority    string `json:"priority"`
}

// Service is the boundary contract clients drive the workflow through:
// submit, status, decide, reset. Writes happen only in the background
// workers it spawns; reads go through store snapshots.
type Service struct {
	store        Store
	pipeline     *Pipeline
	gate         *Gate
	clock        Clock
	notify       *Notifier
	logger       *zap.Logger
	recorder     *metrics.Recorder
	singleFlight bool
}

func NewService(store Store, pipeline *Pipeline, gate *Gate, clock Clock, notify *Notifier, logger *zap.Logger, recorder *metrics.Recorder, singleFlight bool) *Service {
	return &Service{
		store:        store,
		pipeline:     pipeline,
		gate:         gate,
		clock:        clock,
		notify:       notify,
		logger:       logger,
		recorder:     recorder,
		singleFlight: singleFlight,
	}
}

// Submit validates the request, creates its state, and starts the analysis
// worker. Validation failures create no state.
func (s *Service) Submit(ctx context.Context, in SubmitRequest) (string, error) {
	if strings.TrimSpace(in.PartNumber) == "" {
		return "", fmt.Errorf("%w: part_number is required", ErrValidation)
	}
	if in.Quantity <= 0 {
		return "", fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, in.Quantity)
	}
	if strings.TrimSpace(in.Destination) == "" {
		return "", fmt.Errorf("%w: destination is required", ErrValidation)
	}
	priority, err := ParsePriority(in.Priority)
	if err != nil {
		return "", err
	}

	if s.singleFlight && s.store.HasActive() {
		return "", fmt.Errorf("%w: another request is in flight", ErrDuplicateRequest)
	}

	req := Request{
		RequestID:   strings.TrimSpace(in.RequestID),
		PartNumber:  strings.TrimSpace(in.PartNumber),
		Quantity:    in.Quantity,
		Destination: strings.TrimSpace(in.Destination),
		Priority:    priority,
		CreatedAt:   s.clock.Now(),
	}
	if req.RequestID == "" {
		req.RequestID = newRequestID(req.PartNumber)
	}

	if _, err := s.store.Create(req); err != nil {
		return "", err
	}
	s.recorder.Submitted(ctx)
	s.notify.RunEvent(req.RequestID, StatusAnalyzing, 0, "run.submitted", "")
	s.logger.Info("request submitted",
		zap.String("request_id", req.RequestID),
		zap.String("part_number", req.PartNumber),
		zap.Int("quantity", req.Quantity),
		zap.String("priority", string(priority)))

	go func() {
		s.pipeline.Run(context.Background(), req.RequestID)
		if snap, err := s.store.Snapshot(req.RequestID); err == nil && snap.Status == StatusAwaitingApproval {
			s.gate.ArmEscalation(req.RequestID)
		}
	}()
	return req.RequestID, nil
}

// Status returns the visible state: a consistent snapshot whose log never
// runs ahead of the current step.
func (s *Service) Status(ctx context.Context, requestID string) (State, error) {
	return s.store.Snapshot(requestID)
}

// Decide resolves the approval gate for a request awaiting approval.
func (s *Service) Decide(ctx context.Context, requestID string, approved bool, rationale string) error {
	if err := s.gate.Decide(ctx, requestID, approved, rationale); err != nil {
		return err
	}
	if approved {
		s.recorder.Approved(ctx)
	} else {
		s.recorder.Rejected(ctx)
	}
	return nil
}

// Reset discards a terminal state so the id can be reused. Non-terminal
// requests are rejected; in-flight workers are never interrupted.
func (s *Service) Reset(ctx context.Context, requestID string) error {
	if err := s.store.Reset(requestID); err != nil {
		return err
	}
	s.logger.Info("request reset", zap.String("request_id", requestID))
	return nil
}
