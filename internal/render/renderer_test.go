package render_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-swap/internal/bot/view"
	"github.com/Proton-105/himera-swap/internal/render"
	"github.com/Proton-105/himera-swap/internal/render/rendertest"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/internal/testutil"
)

const chatID = 555

func newRenderer(t *testing.T) (*render.Renderer, *rendertest.Transport, session.Storage) {
	t.Helper()
	transport := rendertest.NewTransport()
	storage := session.NewMemoryStorage()
	return render.NewRenderer(transport, storage, time.Second, testutil.Logger()), transport, storage
}

func TestRenderSendsWhenNoLiveMessage(t *testing.T) {
	r, transport, storage := newRenderer(t)
	ctx := context.Background()
	step := session.New(1)

	require.NoError(t, r.Render(ctx, chatID, step, view.View{Text: "hello"}))

	assert.Equal(t, 1, transport.Sends)
	assert.NotZero(t, step.MainMessageID)

	saved, err := storage.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, step.MainMessageID, saved.MainMessageID)
}

func TestRenderEditsInPlace(t *testing.T) {
	r, transport, _ := newRenderer(t)
	ctx := context.Background()
	step := session.New(1)

	require.NoError(t, r.Render(ctx, chatID, step, view.View{Text: "one"}))
	id := step.MainMessageID

	require.NoError(t, r.Render(ctx, chatID, step, view.View{Text: "two"}))
	assert.Equal(t, id, step.MainMessageID)
	assert.Equal(t, 1, transport.Sends)
	assert.Equal(t, 1, transport.Edits)

	msg, ok := transport.Message(id)
	require.True(t, ok)
	assert.Equal(t, "two", msg.Text)
}

func TestRenderFallsBackToSend(t *testing.T) {
	r, transport, storage := newRenderer(t)
	ctx := context.Background()
	step := session.New(1)
	step.MainMessageID = 42
	transport.FailEdits = true

	require.NoError(t, r.Render(ctx, chatID, step, view.View{Text: "fresh"}))

	assert.NotEqual(t, 42, step.MainMessageID)
	assert.Equal(t, 1, transport.Sends)

	saved, err := storage.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, step.MainMessageID, saved.MainMessageID)
}

func TestRenderIdempotent(t *testing.T) {
	r, transport, _ := newRenderer(t)
	ctx := context.Background()
	step := session.New(1)
	v := view.View{Text: "same"}

	require.NoError(t, r.Render(ctx, chatID, step, v))
	first, _ := transport.Message(step.MainMessageID)

	require.NoError(t, r.Render(ctx, chatID, step, v))
	second, _ := transport.Message(step.MainMessageID)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, transport.Sends)
}

func TestRenderSendFailureLeavesStepUnsaved(t *testing.T) {
	r, transport, storage := newRenderer(t)
	ctx := context.Background()
	transport.FailSends = true

	err := r.Render(ctx, chatID, session.New(1), view.View{Text: "x"})
	require.Error(t, err)

	_, err = storage.Get(ctx, 1)
	assert.ErrorIs(t, err, session.ErrStepNotFound)
}

func TestCleanupIgnoresZeroIDs(t *testing.T) {
	r, transport, _ := newRenderer(t)

	r.Cleanup(context.Background(), chatID, 0, 7, 0, 8)

	assert.Eventually(t, func() bool {
		return len(transport.DeletedIDs()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{7, 8}, transport.DeletedIDs())
}
