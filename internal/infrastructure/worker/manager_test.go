package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWorker struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
	mu       *sync.Mutex
}

func (w *recordingWorker) record(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.log = append(*w.log, s)
}

func (w *recordingWorker) Start(context.Context) error {
	w.record("start " + w.name)
	return w.startErr
}

func (w *recordingWorker) Stop() error {
	w.record("stop " + w.name)
	return w.stopErr
}

func (w *recordingWorker) Name() string { return w.name }

func TestWorkerManager_Lifecycle(t *testing.T) {
	var log []string
	mu := &sync.Mutex{}
	m := NewWorkerManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", log: &log, mu: mu})
	m.Register(&recordingWorker{name: "b", log: &log, mu: mu, startErr: errors.New("boom")})
	m.Register(&recordingWorker{name: "c", log: &log, mu: mu})

	require.Equal(t, 3, m.GetWorkerCount())
	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, log)

	require.NoError(t, m.StopAll(), "stopping twice is a no-op")
}

func TestWorkerManager_StopErrorsAreCounted(t *testing.T) {
	var log []string
	mu := &sync.Mutex{}
	m := NewWorkerManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", log: &log, mu: mu, stopErr: errors.New("stuck")})

	require.NoError(t, m.StartAll(context.Background()))
	assert.EqualError(t, m.StopAll(), "failed to stop 1 workers")
}
