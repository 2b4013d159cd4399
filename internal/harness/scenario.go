package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/offpos/internal/cart"
	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/testutil"
)

// Scenario defines a terminal scenario: an authority catalog, setup steps
// that establish state without being traced, a traced flow and final
// assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Products is the authority's catalog.
	Products []model.Product `yaml:"products,omitempty"`

	// Setup steps run before the flow and are not traced.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are traced, one event per step.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step kinds.
const (
	StepAdd            = "add"             // add product_id, qty times
	StepScan           = "scan"            // add by barcode
	StepCart           = "cart"            // apply op
	StepCheckout       = "checkout"        // submit the cart
	StepDrain          = "drain"           // run a drain pass
	StepRefreshCatalog = "refresh_catalog" // fetch the catalog
	StepAuthority      = "authority"       // change authority behaviour
	StepStoreFault     = "store_fault"     // inject storage failures
	StepHealStore      = "heal_store"      // clear storage failures
	StepNotifyOnline   = "notify_online"   // connectivity restored
	StepRestart        = "restart"         // close and reopen the terminal
	StepSeedPending    = "seed_pending"    // write a pending sale directly
	StepAdvance        = "advance"         // move the clock
)

var stepKinds = map[string]bool{
	StepAdd: true, StepScan: true, StepCart: true, StepCheckout: true,
	StepDrain: true, StepRefreshCatalog: true, StepAuthority: true,
	StepStoreFault: true, StepHealStore: true, StepNotifyOnline: true,
	StepRestart: true, StepSeedPending: true, StepAdvance: true,
}

// Step is one scenario action.
type Step struct {
	Do string `yaml:"do"`

	ProductID string   `yaml:"product_id,omitempty"`
	Qty       int      `yaml:"qty,omitempty"`
	Barcode   string   `yaml:"barcode,omitempty"`
	Op        *cart.Op `yaml:"op,omitempty"`

	// authority
	Online      *bool   `yaml:"online,omitempty"`
	FailSubmits int     `yaml:"fail_submits,omitempty"`
	LoseAcks    int     `yaml:"lose_acks,omitempty"`
	RejectAll   *string `yaml:"reject_all,omitempty"`

	// store_fault
	Fault *StoreFault `yaml:"fault,omitempty"`

	// seed_pending
	Sale *PendingSeed `yaml:"sale,omitempty"`

	// advance, Go duration syntax
	By string `yaml:"by,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// StoreFault makes a store operation fail Times times; negative means
// until heal_store.
type StoreFault struct {
	Op    testutil.StoreOp `yaml:"op"`
	Times int              `yaml:"times"`
}

// PendingSeed is a pending sale written by seed_pending.
type PendingSeed struct {
	ID    string           `yaml:"id"`
	Items []model.SaleLine `yaml:"items"`
}

// Expect checks a step's immediate result. Unset fields are not checked.
type Expect struct {
	Outcome string `yaml:"outcome,omitempty"`
	// Error is the expected error code; "none" requires success.
	Error     string `yaml:"error,omitempty"`
	Committed *int   `yaml:"committed,omitempty"`
	Remaining *int   `yaml:"remaining,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Lines is the expected cart (cart).
	Lines []model.SaleLine `yaml:"lines,omitempty"`

	// IDs is the expected id list (pending, committed), in order.
	IDs []string `yaml:"ids,omitempty"`

	// Count is the expected number of authority submit calls (submit_count).
	Count int `yaml:"count,omitempty"`

	// Outcomes is the expected checkout outcome order (outcome_order).
	Outcomes []string `yaml:"outcomes,omitempty"`
}

// Assertion type constants.
const (
	AssertCart         = "cart"
	AssertPending      = "pending"
	AssertCommitted    = "committed"
	AssertSubmitCount  = "submit_count"
	AssertOutcomeOrder = "outcome_order"
)

var faultOps = map[testutil.StoreOp]bool{
	testutil.OpSaveCart: true, testutil.OpEnqueueSale: true, testutil.OpDeleteSale: true,
	testutil.OpListPending: true, testutil.OpSaveCatalog: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is only allowed in flow", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if !stepKinds[step.Do] {
		return fmt.Errorf("unknown step %q", step.Do)
	}
	switch step.Do {
	case StepAdd:
		if step.ProductID == "" {
			return fmt.Errorf("add: product_id is required")
		}
		if step.Qty < 0 {
			return fmt.Errorf("add: qty must not be negative")
		}
	case StepScan:
		if step.Barcode == "" {
			return fmt.Errorf("scan: barcode is required")
		}
	case StepCart:
		if step.Op == nil {
			return fmt.Errorf("cart: op is required")
		}
	case StepAuthority:
		if step.Online == nil && step.FailSubmits == 0 && step.LoseAcks == 0 && step.RejectAll == nil {
			return fmt.Errorf("authority: at least one of online, fail_submits, lose_acks, reject_all is required")
		}
	case StepStoreFault:
		if step.Fault == nil || !faultOps[step.Fault.Op] {
			return fmt.Errorf("store_fault: fault.op must name a store operation")
		}
	case StepSeedPending:
		if step.Sale == nil || step.Sale.ID == "" || len(step.Sale.Items) == 0 {
			return fmt.Errorf("seed_pending: sale with id and items is required")
		}
	case StepAdvance:
		if _, err := time.ParseDuration(step.By); err != nil {
			return fmt.Errorf("advance: by: %w", err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertCart, AssertPending, AssertCommitted:
	case AssertSubmitCount:
		if a.Count < 0 {
			return fmt.Errorf("submit_count: count must be non-negative")
		}
	case AssertOutcomeOrder:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("outcome_order: outcomes list is required")
		}
		for _, o := range a.Outcomes {
			if !slices.Contains(checkoutOutcomes, o) {
				return fmt.Errorf("outcome_order: unknown outcome %q", o)
			}
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
