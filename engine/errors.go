/*
errors.go - Centralized error types for the incentive engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses.

ERROR CATEGORIES:
  1. Configuration errors - bad rules/plans; fatal, rejected at load
     time so a broken plan can never silently under- or over-pay
  2. Validation errors - bad windows, scenario counts; rejected before
     any computation touches the metric provider
  3. Store errors - persistence failures, propagated untouched

Missing metric data is deliberately NOT an error: it resolves to zero.

USAGE:
  if errors.Is(err, engine.ErrBadRuleConfig) {
      var cfgErr *engine.ConfigError
      errors.As(err, &cfgErr)
      log.Printf("rule %d: %s", cfgErr.RuleID, cfgErr.Reason)
  }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBadRuleConfig is returned when a rule is structurally invalid
	// (unknown calcType, missing rate, dangling qualification reference).
	ErrBadRuleConfig = errors.New("invalid rule configuration")

	// ErrInvalidWindow is returned when a window is malformed
	// (to before from, or unparseable dates).
	ErrInvalidWindow = errors.New("invalid window: to before from")

	// ErrWindowTooLarge is returned when a window exceeds the engine's
	// configured day cap.
	ErrWindowTooLarge = errors.New("window too large")

	// ErrScenarioCount is returned when a comparison carries fewer than
	// two or more than three unique scenarios.
	ErrScenarioCount = errors.New("comparison requires 2 to 3 unique scenarios")

	// ErrNoActivePlan is returned when no active plan covers the
	// requested date for a venture.
	ErrNoActivePlan = errors.New("no active plan")

	// ErrAmbiguousPlan is returned when two active plans share the same
	// effective-from date. That is an operator misconfiguration, not a
	// tie the engine silently breaks.
	ErrAmbiguousPlan = errors.New("ambiguous active plan configuration")

	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrScenarioNotFound is returned when a referenced scenario doesn't exist.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError describes why a rule is invalid. It carries enough
// context (rule id, calcType) for an operator to fix the plan; the API
// layer logs it and returns a generic message to clients.
type ConfigError struct {
	RuleID   RuleID
	CalcType CalcType
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %d (%s): %s", e.RuleID, e.CalcType, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrBadRuleConfig }

// WindowError reports a window exceeding the configured cap.
type WindowError struct {
	Days int
	Max  int
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window of %d days exceeds maximum of %d", e.Days, e.Max)
}

func (e *WindowError) Unwrap() error { return ErrWindowTooLarge }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller
// input. Rule configuration errors count: rules arrive over the API,
// so a broken rule is the caller's to fix.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrWindowTooLarge) ||
		errors.Is(err, ErrScenarioCount) ||
		errors.Is(err, ErrBadRuleConfig)
}

// IsNotFound returns true if the error indicates a missing record.
// Having no active plan for a date is a missing-record condition from
// the caller's point of view.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrScenarioNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrNoActivePlan)
}

// IsConfigError returns true for operator misconfiguration. These are
// never surfaced to end users as raw internals.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrBadRuleConfig) ||
		errors.Is(err, ErrAmbiguousPlan)
}
