// Package scenario holds the live modeling session: one hypothetical exit
// scenario over an editable equity structure, with reactive recalculation.
//
// Every mutation marks the session dirty and schedules a debounced
// recalculation, coalescing bursts of edits (a slider drag) into one run.
// Results commit only if their generation still matches the session's, so a
// slow stale calculation can never overwrite a fresher one.
package scenario

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antiwork/flexile-sub003/internal/model"
	"github.com/antiwork/flexile-sub003/internal/validate"
	"github.com/antiwork/flexile-sub003/internal/waterfall"
)

// DefaultDebounce is the recalculation delay applied when none is configured.
const DefaultDebounce = 150 * time.Millisecond

// Comparison is a named snapshot of a scenario and its result, kept for
// side-by-side display.
type Comparison struct {
	Name     string            `json:"name"`
	Scenario model.Scenario    `json:"scenario"`
	Result   *waterfall.Result `json:"result"`
}

// Session is the scenario store. All exported methods are safe for
// concurrent use.
type Session struct {
	mu       sync.Mutex
	calc     *waterfall.Calculator
	debounce time.Duration

	scenario  model.Scenario
	structure model.EquityStructure

	// Load-time snapshot Reset restores.
	originalScenario  model.Scenario
	originalStructure model.EquityStructure

	result   *waterfall.Result
	warnings []string
	lastErr  error

	isCalculating     bool
	hasUnsavedChanges bool

	// generation gates which calculation may commit its result.
	generation uint64
	timer      *time.Timer

	onResult    func(*waterfall.Result)
	comparisons []Comparison
}

// NewSession creates a session. onResult, if non-nil, is invoked after each
// committed successful calculation, outside the session lock.
func NewSession(calc *waterfall.Calculator, debounce time.Duration, onResult func(*waterfall.Result)) *Session {
	if calc == nil {
		calc = waterfall.New(nil)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Session{
		calc:     calc,
		debounce: debounce,
		onResult: onResult,
	}
}

// Load replaces the session contents with backend data and captures the
// snapshot Reset restores. Schedules an initial calculation.
func (s *Session) Load(sc model.Scenario, structure model.EquityStructure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenario = sc
	s.structure = structure.Clone()
	s.originalScenario = sc
	s.originalStructure = structure.Clone()
	s.hasUnsavedChanges = false
	s.result = nil
	s.lastErr = nil
	s.scheduleLocked()
}

// --- Scenario parameter edits ---

// SetExitAmount updates the hypothetical exit amount (integer cents).
func (s *Session) SetExitAmount(cents decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenario.ExitAmountCents = cents
	s.markDirtyLocked()
}

// SetExitDate updates the hypothetical exit date.
func (s *Session) SetExitDate(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenario.ExitDate = t
	s.markDirtyLocked()
}

// --- Structure edits ---
// Entities added through the session are tagged hypothetical so save/export
// can separate them from database-backed rows.

func (s *Session) AddInvestor(inv model.Investor) {
	inv.IsHypothetical = true
	s.mutateStructure(func(st *model.EquityStructure) {
		st.Investors = append(st.Investors, inv)
	})
}

func (s *Session) UpdateInvestor(inv model.Investor) {
	s.mutateStructure(func(st *model.EquityStructure) {
		for i := range st.Investors {
			if st.Investors[i].ID == inv.ID {
				inv.IsHypothetical = st.Investors[i].IsHypothetical
				st.Investors[i] = inv
				return
			}
		}
	})
}

func (s *Session) RemoveInvestor(id string) {
	s.mutateStructure(func(st *model.EquityStructure) {
		st.Investors = deleteByID(st.Investors, func(inv model.Investor) string { return inv.ID }, id)
	})
}

func (s *Session) AddShareClass(c model.ShareClass) {
	c.IsHypothetical = true
	s.mutateStructure(func(st *model.EquityStructure) {
		st.ShareClasses = append(st.ShareClasses, c)
	})
}

func (s *Session) UpdateShareClass(c model.ShareClass) {
	s.mutateStructure(func(st *model.EquityStructure) {
		for i := range st.ShareClasses {
			if st.ShareClasses[i].ID == c.ID {
				c.IsHypothetical = st.ShareClasses[i].IsHypothetical
				st.ShareClasses[i] = c
				return
			}
		}
	})
}

func (s *Session) RemoveShareClass(id string) {
	s.mutateStructure(func(st *model.EquityStructure) {
		st.ShareClasses = deleteByID(st.ShareClasses, func(c model.ShareClass) string { return c.ID }, id)
	})
}

func (s *Session) AddHolding(h model.ShareHolding) {
	h.IsHypothetical = true
	s.mutateStructure(func(st *model.EquityStructure) {
		st.ShareHoldings = append(st.ShareHoldings, h)
	})
}

func (s *Session) UpdateHolding(h model.ShareHolding) {
	s.mutateStructure(func(st *model.EquityStructure) {
		for i := range st.ShareHoldings {
			if st.ShareHoldings[i].ID == h.ID {
				h.IsHypothetical = st.ShareHoldings[i].IsHypothetical
				st.ShareHoldings[i] = h
				return
			}
		}
	})
}

func (s *Session) RemoveHolding(id string) {
	s.mutateStructure(func(st *model.EquityStructure) {
		st.ShareHoldings = deleteByID(st.ShareHoldings, func(h model.ShareHolding) string { return h.ID }, id)
	})
}

func (s *Session) AddConvertible(sec model.ConvertibleSecurity) {
	sec.IsHypothetical = true
	s.mutateStructure(func(st *model.EquityStructure) {
		st.ConvertibleSecurities = append(st.ConvertibleSecurities, sec)
	})
}

func (s *Session) RemoveConvertible(id string) {
	s.mutateStructure(func(st *model.EquityStructure) {
		st.ConvertibleSecurities = deleteByID(st.ConvertibleSecurities, func(c model.ConvertibleSecurity) string { return c.ID }, id)
	})
}

// --- Lifecycle ---

// Reset restores the scenario and structure captured at Load time and
// schedules a recalculation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenario = s.originalScenario
	s.structure = s.originalStructure.Clone()
	s.hasUnsavedChanges = false
	s.scheduleLocked()
}

// MarkSaved clears the dirty flag and flips the scenario to saved without
// altering data. The next edit flips it back to draft.
func (s *Session) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hasUnsavedChanges = false
	s.scenario.Status = model.ScenarioSaved
}

// CalculateNow cancels any pending debounce and runs a calculation
// synchronously, committing and returning its result.
func (s *Session) CalculateNow() (*waterfall.Result, error) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	gen := s.generation
	s.isCalculating = true
	input := s.inputLocked()
	s.mu.Unlock()

	return s.run(gen, input)
}

// AddComparison snapshots the current scenario and result under a name.
func (s *Session) AddComparison(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.comparisons = append(s.comparisons, Comparison{
		Name:     name,
		Scenario: s.scenario,
		Result:   s.result,
	})
}

// Comparisons returns the stored comparison snapshots.
func (s *Session) Comparisons() []Comparison {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Comparison, len(s.comparisons))
	copy(out, s.comparisons)
	return out
}

// SaveFormat returns only the entities created in this session, flagged
// hypothetical. Database-backed entities are never re-saved by this layer.
func (s *Session) SaveFormat() model.EquityStructure {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out model.EquityStructure
	for _, inv := range s.structure.Investors {
		if inv.IsHypothetical {
			out.Investors = append(out.Investors, inv)
		}
	}
	for _, c := range s.structure.ShareClasses {
		if c.IsHypothetical {
			out.ShareClasses = append(out.ShareClasses, c)
		}
	}
	for _, h := range s.structure.ShareHoldings {
		if h.IsHypothetical {
			out.ShareHoldings = append(out.ShareHoldings, h)
		}
	}
	for _, sec := range s.structure.ConvertibleSecurities {
		if sec.IsHypothetical {
			out.ConvertibleSecurities = append(out.ConvertibleSecurities, sec)
		}
	}
	return out
}

// --- Accessors ---

func (s *Session) Scenario() model.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenario
}

func (s *Session) Structure() model.EquityStructure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.structure.Clone()
}

// Result returns the latest committed calculation result, or nil if none
// has completed yet.
func (s *Session) Result() *waterfall.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Warnings returns the structural warnings from the latest calculation.
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// LastError returns the error from the latest committed calculation attempt.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasUnsavedChanges
}

func (s *Session) IsCalculating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCalculating
}

// --- Internals ---

func (s *Session) mutateStructure(fn func(*model.EquityStructure)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.structure)
	s.markDirtyLocked()
}

// markDirtyLocked flags unsaved changes, demotes a saved scenario back to
// draft, and schedules a debounced recalculation. Caller holds s.mu.
func (s *Session) markDirtyLocked() {
	s.hasUnsavedChanges = true
	s.scenario.Status = model.ScenarioDraft
	s.scheduleLocked()
}

// scheduleLocked arms the debounce timer, superseding any pending run.
// Caller holds s.mu.
func (s *Session) scheduleLocked() {
	s.generation++
	gen := s.generation
	s.isCalculating = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return // superseded while waiting
		}
		input := s.inputLocked()
		s.mu.Unlock()

		s.run(gen, input)
	})
}

// inputLocked snapshots the calculation input. Caller holds s.mu.
func (s *Session) inputLocked() waterfall.Input {
	return waterfall.Input{
		ExitAmountCents: s.scenario.ExitAmountCents,
		ExitDate:        s.scenario.ExitDate,
		Structure:       s.structure.Clone(),
	}
}

// run executes one calculation and commits its outcome if the generation
// still matches. Stale results are discarded.
func (s *Session) run(gen uint64, input waterfall.Input) (*waterfall.Result, error) {
	warnings := validate.Check(input.Structure)
	result, err := s.calc.Calculate(input)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return result, err
	}
	s.isCalculating = false
	s.warnings = warnings
	s.lastErr = err
	if err == nil {
		s.result = result
	}
	cb := s.onResult
	s.mu.Unlock()

	if err == nil && cb != nil {
		cb(result)
	}
	return result, err
}

// deleteByID removes the first element whose ID matches.
func deleteByID[T any](items []T, id func(T) string, target string) []T {
	for i, item := range items {
		if id(item) == target {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}
