package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted buy flow with assertions on its trace and final
// state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// FlowID is the fixed flow id of the run. Defaults to "flow-" + Name.
	FlowID string `yaml:"flow_id,omitempty"`

	// Initial is the state the engine starts from.
	Initial InitialState `yaml:"initial,omitempty"`

	// Broker configures the in-memory broker before the first step.
	Broker BrokerSetup `yaml:"broker,omitempty"`

	// Resume treats Initial as the snapshot of a previous session and
	// reconciles it with the broker before the first step.
	Resume bool `yaml:"resume,omitempty"`

	// Steps are submitted one at a time. Each step waits for the engine
	// to go idle before the next one is submitted.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// InitialState seeds the engine.
type InitialState struct {
	Asset         string         `yaml:"asset,omitempty"`
	Fiat          string         `yaml:"fiat,omitempty"`
	Amount        string         `yaml:"amount,omitempty"`
	OrderID       string         `yaml:"order_id,omitempty"`
	Lifecycle     string         `yaml:"lifecycle,omitempty"`
	Frequency     string         `yaml:"frequency,omitempty"`
	PaymentMethod *PaymentMethod `yaml:"payment_method,omitempty"`
}

// PaymentMethod is a payment method reference.
type PaymentMethod struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"`
	Label    string `yaml:"label,omitempty"`
	Eligible bool   `yaml:"eligible,omitempty"`
}

// BrokerSetup configures the in-memory broker.
type BrokerSetup struct {
	Tier             *TierSetup    `yaml:"tier,omitempty"`
	Eligible         *bool         `yaml:"eligible,omitempty"`
	PendingLimit     int           `yaml:"pending_limit,omitempty"`
	Settlement       *Settlement   `yaml:"settlement,omitempty"`
	AuthorisationURL string        `yaml:"authorisation_url,omitempty"`
	Cards            []CardSetup   `yaml:"cards,omitempty"`
	Banks            []BankSetup   `yaml:"banks,omitempty"`
	Orders           []OrderSetup  `yaml:"orders,omitempty"`
	Failures         []FailureStep `yaml:"failures,omitempty"`
}

// TierSetup is the user's verification tier.
type TierSetup struct {
	Level string `yaml:"level"`
	State string `yaml:"state,omitempty"`
}

// Settlement controls how confirmed orders settle.
type Settlement struct {
	Polls     int    `yaml:"polls"`
	Lifecycle string `yaml:"lifecycle"`
	Approval  string `yaml:"approval,omitempty"`
}

// CardSetup is a linked card.
type CardSetup struct {
	ID      string `yaml:"id"`
	Label   string `yaml:"label,omitempty"`
	Partner string `yaml:"partner,omitempty"`
	Status  string `yaml:"status,omitempty"`
}

// BankSetup is a linked bank account.
type BankSetup struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name,omitempty"`
	Account   string `yaml:"account,omitempty"`
	State     string `yaml:"state,omitempty"`
	ErrorCode string `yaml:"error_code,omitempty"`
}

// OrderSetup is an order that already exists at the broker.
type OrderSetup struct {
	ID              string `yaml:"id"`
	Asset           string `yaml:"asset"`
	Fiat            string `yaml:"fiat"`
	Amount          string `yaml:"amount"`
	Lifecycle       string `yaml:"lifecycle"`
	PaymentMethodID string `yaml:"payment_method_id,omitempty"`
}

// FailureStep queues an error for the next call of a broker operation.
type FailureStep struct {
	Op      string `yaml:"op"`
	Code    string `yaml:"code"`
	Message string `yaml:"message,omitempty"`
}

// Step submits one intent.
type Step struct {
	Intent string         `yaml:"intent"`
	Args   map[string]any `yaml:"args,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Intent is used by trace_contains and trace_count.
	Intent string `yaml:"intent,omitempty"`

	// Applied restricts trace_contains to applied or skipped intents.
	Applied *bool `yaml:"applied,omitempty"`

	// Intents is the expected order (trace_order).
	Intents []string `yaml:"intents,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect maps final state fields to expected values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads, schema-checks and parses a scenario YAML file.
// Returns an error if the file doesn't exist, violates the schema,
// contains unknown fields, or names an intent that cannot be scripted.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario parses scenario YAML. filename is only used in messages.
func ParseScenario(filename string, data []byte) (*Scenario, error) {
	if errs := ValidateSchema(filename, data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid scenario: %w", errs[0])
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks what the schema cannot: intents must be known and
// scriptable, and assertions must refer to known intents and state fields.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if _, err := decodeIntent(step.Intent, step.Args); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if !knownIntent(a.Intent) {
			return fmt.Errorf("assertions[%d]: unknown intent %q", index, a.Intent)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.Intents) == 0 {
			return fmt.Errorf("assertions[%d]: intents list is required for trace_order", index)
		}
		for _, name := range a.Intents {
			if !knownIntent(name) {
				return fmt.Errorf("assertions[%d]: unknown intent %q", index, name)
			}
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for field := range a.Expect {
			if _, ok := stateFields[field]; !ok {
				return fmt.Errorf("assertions[%d]: unknown state field %q", index, field)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
