package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-swap/internal/jobs"
	"github.com/Proton-105/himera-swap/internal/testutil"
)

type fakeScanner struct {
	limit, dca int
	err        error
}

func (f *fakeScanner) ScanLimit(context.Context) error {
	f.limit++
	return f.err
}

func (f *fakeScanner) ScanDCA(context.Context) error {
	f.dca++
	return f.err
}

type fakeWorker struct {
	handlers map[string]asynq.Handler
}

func (w *fakeWorker) RegisterHandler(taskType string, h asynq.Handler) {
	if w.handlers == nil {
		w.handlers = make(map[string]asynq.Handler)
	}
	w.handlers[taskType] = h
}

func (w *fakeWorker) Run() error { return nil }
func (w *fakeWorker) Shutdown()  {}

func TestRegisterRoutesEachKind(t *testing.T) {
	scanner := &fakeScanner{}
	w := &fakeWorker{}
	require.NoError(t, Register(w, scanner, testutil.Logger()))
	require.Len(t, w.handlers, 2)

	ctx := context.Background()
	require.NoError(t, w.handlers[jobs.TaskTypeScanLimit].ProcessTask(ctx, asynq.NewTask(jobs.TaskTypeScanLimit, nil)))
	require.NoError(t, w.handlers[jobs.TaskTypeScanDCA].ProcessTask(ctx, asynq.NewTask(jobs.TaskTypeScanDCA, nil)))
	require.NoError(t, w.handlers[jobs.TaskTypeScanDCA].ProcessTask(ctx, asynq.NewTask(jobs.TaskTypeScanDCA, nil)))

	assert.Equal(t, 1, scanner.limit)
	assert.Equal(t, 2, scanner.dca)
}

func TestScanFailureSkipsRetry(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("store unavailable")}
	h, err := NewScanHandler(jobs.TaskTypeScanLimit, scanner, testutil.Logger())
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), asynq.NewTask(jobs.TaskTypeScanLimit, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestNewScanHandlerUnknownType(t *testing.T) {
	_, err := NewScanHandler("price:update", &fakeScanner{}, nil)
	assert.Error(t, err)
}

var _ Scanner = (*fakeScanner)(nil)
var _ jobs.Worker = (*fakeWorker)(nil)
