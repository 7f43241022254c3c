package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingManager struct {
	types []string
	err   error
}

func (m *recordingManager) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.types = append(m.types, task.Type())
	return &asynq.TaskInfo{ID: task.Type(), Queue: QueueCritical}, nil
}

func (m *recordingManager) Close() error { return nil }

func TestNewScanTask(t *testing.T) {
	task, err := NewScanTask(TaskTypeScanLimit, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeScanLimit, task.Type())
	assert.Empty(t, task.Payload())

	_, err = NewScanTask("price:update", time.Second)
	assert.Error(t, err)
}

func TestCronSpec(t *testing.T) {
	assert.Equal(t, "@every 30s", CronSpec(30*time.Second))
	assert.Equal(t, "@every 1m0s", CronSpec(time.Minute))
}

func TestEnqueueScans(t *testing.T) {
	m := &recordingManager{}
	require.NoError(t, EnqueueScans(context.Background(), m))
	assert.Equal(t, []string{TaskTypeScanLimit, TaskTypeScanDCA}, m.types)

	failing := &recordingManager{err: errors.New("redis down")}
	err := EnqueueScans(context.Background(), failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskTypeScanLimit)
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	s := &scheduler{intervals: Intervals{Limit: time.Second}}
	err := s.RegisterTasks()
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskTypeScanDCA)
}

type fakeClient struct {
	err    error
	closed bool
}

func (c *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &asynq.TaskInfo{ID: "id-1", Type: task.Type(), Queue: QueueCritical}, nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func TestManagerTreatsDuplicatesAsQueued(t *testing.T) {
	task, err := NewScanTask(TaskTypeScanDCA, time.Minute)
	require.NoError(t, err)

	m := newManager(&fakeClient{err: asynq.ErrDuplicateTask}, nil)
	info, err := m.Enqueue(context.Background(), task)
	assert.NoError(t, err)
	assert.Nil(t, info)

	m = newManager(&fakeClient{err: errors.New("redis down")}, nil)
	_, err = m.Enqueue(context.Background(), task)
	assert.EqualError(t, err, "redis down")

	client := &fakeClient{}
	m = newManager(client, nil)
	info, err = m.Enqueue(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "id-1", info.ID)
	require.NoError(t, m.Close())
	assert.True(t, client.closed)
}

func TestEnqueueScansToleratesQueuedScans(t *testing.T) {
	m := newManager(&fakeClient{err: asynq.ErrDuplicateTask}, nil)
	assert.NoError(t, EnqueueScans(context.Background(), m))
}
