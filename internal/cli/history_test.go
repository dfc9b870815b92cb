package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/store"
)

// recordFlow writes a short flow that creates an order and skips one
// stale confirmation.
func recordFlow(t *testing.T, env testEnv, flowID string) {
	t.Helper()
	st := env.openStore(t)
	ctx := context.Background()

	created := pendingCardOrder()
	records := []store.TransitionRecord{
		{FlowID: flowID, Seq: 1, Intent: "InitialiseSelectedAssetAndFiat", Applied: true,
			From: order.LifecycleUninitialised, To: order.LifecycleUninitialised},
		{FlowID: flowID, Seq: 2, Intent: "OrderCreated", Applied: true,
			From: order.LifecycleUninitialised, To: order.LifecyclePendingConfirmation, State: created},
		{FlowID: flowID, Seq: 3, Intent: "OrderCreated", Applied: false,
			From: order.LifecyclePendingConfirmation, To: order.LifecyclePendingConfirmation, State: created},
	}
	for _, rec := range records {
		require.NoError(t, st.AppendTransition(ctx, rec))
	}
}

func TestHistory_NoFlows(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute(t, "history")

	require.NoError(t, err)
	assert.Contains(t, out, "No recorded flows")
}

func TestHistory_ListFlows(t *testing.T) {
	env := newTestEnv(t, "")
	recordFlow(t, env, "flow-a")
	recordFlow(t, env, "flow-b")

	out, err := env.execute(t, "--format", "json", "history")
	require.NoError(t, err)

	var data map[string][]string
	decodeResponse(t, out, &data)
	assert.ElementsMatch(t, []string{"flow-a", "flow-b"}, data["flows"])
}

func TestHistory_ShowFlow(t *testing.T) {
	env := newTestEnv(t, "")
	recordFlow(t, env, "flow-a")

	out, err := env.execute(t, "history", "flow-a")
	require.NoError(t, err)

	assert.Contains(t, out, "Flow: flow-a")
	assert.Contains(t, out, "[2] OrderCreated UNINITIALISED -> PENDING_CONFIRMATION  order=order-7")
	assert.Contains(t, out, "(skipped)")
	assert.Contains(t, out, "2 applied, 1 skipped, ended PENDING_CONFIRMATION")
}

func TestHistory_IntentFilter(t *testing.T) {
	env := newTestEnv(t, "")
	recordFlow(t, env, "flow-a")

	out, err := env.execute(t, "--format", "json", "history", "flow-a", "--intent", "OrderCreated")
	require.NoError(t, err)

	var result HistoryResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Events, 2)
	for _, ev := range result.Events {
		assert.Equal(t, "OrderCreated", ev.Intent)
		assert.Equal(t, "order-7", ev.OrderID)
	}
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, order.LifecyclePendingConfirmation, result.Lifecycle)
}

func TestHistory_UnknownFlow(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute(t, "history", "missing")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "no transitions recorded for flow missing")
}

func TestHistory_NeedsSQLite(t *testing.T) {
	env := newTestEnv(t, "")
	env.config = writeConfig(t, "store:\n  backend: none\n")

	_, err := env.execute(t, "history")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `store backend "none" keeps no transition log`)
}

func TestBuildHistory_Empty(t *testing.T) {
	result := buildHistory("flow-a", nil, "")

	assert.Equal(t, "flow-a", result.FlowID)
	assert.NotNil(t, result.Events)
	assert.Zero(t, result.Applied)
}
