package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/buyflow/internal/broker/memory"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/store"
)

// testEnv is a config file whose SQLite store lives in a temp dir.
type testEnv struct {
	config string
	dbPath string
}

// newTestEnv writes a config with fast polling and quote refresh off.
// extra is appended to the YAML.
func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		config: filepath.Join(dir, "buyflow.yaml"),
		dbPath: filepath.Join(dir, "buyflow.db"),
	}
	body := fmt.Sprintf(`log:
  level: error
store:
  backend: sqlite
  path: %s
poll:
  interval: 5ms
quotes:
  refresh_enabled: false
%s`, env.dbPath, extra)
	require.NoError(t, os.WriteFile(env.config, []byte(body), 0o600))
	return env
}

// execute runs the root command with args and returns stdout.
func (env testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", env.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// seed persists s as the snapshot.
func (env testEnv) seed(t *testing.T, s order.State) {
	t.Helper()
	st, err := store.Open(env.dbPath)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Save(context.Background(), s))
}

func (env testEnv) openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(env.dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// decodeResponse parses a JSON envelope and decodes its data into v.
func decodeResponse(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func pendingCardOrder() order.State {
	return order.State{
		ID:            "order-7",
		SelectedAsset: "BTC",
		FiatCurrency:  "USD",
		Amount:        order.MustMoney("USD", "100"),
		Lifecycle:     order.LifecyclePendingConfirmation,
		SelectedPaymentMethod: &order.PaymentMethodRef{
			ID: "card-1", Type: order.PaymentMethodCard, Label: "Visa 4242", IsEligible: true,
		},
	}
}

// writeConfig writes body verbatim as a config file and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buyflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newBroker() *memory.Broker {
	return memory.New()
}
