package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Workers call the recorder unconditionally; a nil recorder must be a no-op,
// never a panic.
func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	ctx := context.Background()

	assert.NotPanics(t, func() {
		r.Submitted(ctx)
		r.Approved(ctx)
		r.Rejected(ctx)
		r.Completed(ctx)
		r.Failed(ctx)
	})
}

func TestRecorderCounts(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.Submitted(context.Background())
		r.Completed(context.Background())
	})
}
