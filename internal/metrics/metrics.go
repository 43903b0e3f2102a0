package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
)

// Recorder counts workflow outcomes on the OTel meter. A nil Recorder is
// safe to call, so tests can omit it.
type Recorder struct {
	submitted metric.Int64Counter
	approved  metric.Int64Counter
	rejected  metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
}

func NewRecorder() (*Recorder, error) {
	meter := otel.Meter("logistics-orchestrator")
	r := &Recorder{}
	var err error
	if r.submitted, err = meter.Int64Counter("workflow.requests.submitted"); err != nil {
		return nil, err
	}
	if r.approved, err = meter.Int64Counter("workflow.requests.approved"); err != nil {
		return nil, err
	}
	if r.rejected, err = meter.Int64Counter("workflow.requests.rejected"); err != nil {
		return nil, err
	}
	if r.completed, err = meter.Int64Counter("workflow.missions.completed"); err != nil {
		return nil, err
	}
	if r.failed, err = meter.Int64Counter("workflow.requests.failed"); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) Submitted(ctx context.Context) {
	if r == nil {
		return
	}
	r.add(ctx, r.submitted)
}

func (r *Recorder) Approved(ctx context.Context) {
	if r == nil {
		return
	}
	r.add(ctx, r.approved)
}

func (r *Recorder) Rejected(ctx context.Context) {
	if r == nil {
		return
	}
	r.add(ctx, r.rejected)
}

func (r *Recorder) Completed(ctx context.Context) {
	if r == nil {
		return
	}
	r.add(ctx, r.completed)
}

func (r *Recorder) Failed(ctx context.Context) {
	if r == nil {
		return
	}
	r.add(ctx, r.failed)
}

func (r *Recorder) add(ctx context.Context, c metric.Int64Counter) {
	if c == nil {
		return
	}
	c.Add(ctx, 1)
}

func Module() fx.Option {
	return fx.Provide(NewRecorder)
}
