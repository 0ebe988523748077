/*
rule.go - Rule evaluation (the computational heart)

PURPOSE:
  Computes a payout amount and qualification verdict for ONE rule and
  ONE user's metric values on ONE day. Everything above this (day
  aggregation, window reduction, scenarios) is fan-out and folding.

FORMULAS:
  PERCENT_OF_METRIC    payout = metric x rate   (rate is a fraction)
  FLAT_PER_UNIT        payout = count  x rate   (rate is currency/unit)
  CURRENCY_PER_DOLLAR  payout = metric x rate   (same shape, different
                                                 semantic metric type)
  BONUS_ON_TARGET      payout = bonus if metric >= threshold else 0

NUMERIC SEMANTICS:
  Amounts are computed in decimal and rounded to 2 places only when
  summed into a day total (day.go), not per rule. Rounding per rule
  would compound error across many small rules.

LOAD-TIME VALIDATION:
  An unknown or missing calcType is a fatal configuration error.
  ValidateRules rejects it before any computation runs; silently
  skipping a rule would understate pay.

SEE ALSO:
  - types.go: Calc variants, Rule, Qualification
  - day.go: Fans Evaluate out across rules and users
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EVALUATION
// =============================================================================

// Evaluate computes the payout for one rule against one user's metrics
// for one day. qualificationMet is resolved by the caller (day.go) from
// the rule's linked qualification; rules without a qualification pass
// true.
//
// A disabled or unqualified rule never contributes. A missing metric
// reads as zero, which naturally yields a zero payout for the
// rate-based kinds and a non-qualifying BONUS_ON_TARGET.
func Evaluate(rule Rule, metrics MetricSet, qualificationMet bool) Outcome {
	if !rule.IsEnabled {
		return Outcome{Amount: decimal.Zero, Fired: false}
	}
	if rule.QualificationID != 0 && !qualificationMet {
		return Outcome{Amount: decimal.Zero, Fired: false}
	}

	var amount decimal.Decimal
	switch calc := rule.Calc.(type) {
	case PercentOfMetric:
		amount = metrics.Get(rule.MetricKey).Mul(calc.Rate)
	case FlatPerUnit:
		amount = metrics.Get(rule.MetricKey).Mul(calc.Rate)
	case CurrencyPerDollar:
		amount = metrics.Get(rule.MetricKey).Mul(calc.Rate)
	case BonusOnTarget:
		key := calc.MetricKey
		if key == "" {
			key = rule.MetricKey
		}
		if metrics.Get(key).GreaterThanOrEqual(calc.Threshold) {
			amount = calc.Bonus
		} else {
			amount = decimal.Zero
		}
	default:
		// Unreachable for validated rule sets; ValidateRules rejects a
		// nil or unknown Calc before any evaluation happens.
		return Outcome{Amount: decimal.Zero, Fired: false}
	}

	return Outcome{Amount: amount, Fired: !amount.IsZero()}
}

// =============================================================================
// LOAD-TIME VALIDATION
// =============================================================================

// ValidateRules rejects structurally invalid rule sets before any
// computation runs. It checks every rule, enabled or not, so a broken
// plan is caught when it is loaded rather than when a rule is later
// flipped on.
func ValidateRules(rules []Rule, qualifications map[QualificationID]Qualification) error {
	for _, rule := range rules {
		if err := validateRule(rule, qualifications); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(rule Rule, qualifications map[QualificationID]Qualification) error {
	if rule.Calc == nil {
		return &ConfigError{RuleID: rule.ID, Reason: "missing or unknown calcType"}
	}
	if rule.MetricKey == "" {
		return &ConfigError{RuleID: rule.ID, CalcType: rule.CalcType(), Reason: "metricKey is required"}
	}

	switch calc := rule.Calc.(type) {
	case PercentOfMetric:
		if calc.Rate.IsNegative() {
			return &ConfigError{RuleID: rule.ID, CalcType: rule.CalcType(), Reason: "rate must not be negative"}
		}
	case FlatPerUnit:
		if calc.Rate.IsNegative() {
			return &ConfigError{RuleID: rule.ID, CalcType: rule.CalcType(), Reason: "rate must not be negative"}
		}
	case CurrencyPerDollar:
		if calc.Rate.IsNegative() {
			return &ConfigError{RuleID: rule.ID, CalcType: rule.CalcType(), Reason: "rate must not be negative"}
		}
	case BonusOnTarget:
		if calc.Bonus.IsNegative() {
			return &ConfigError{RuleID: rule.ID, CalcType: rule.CalcType(), Reason: "bonusAmount must not be negative"}
		}
		if calc.Threshold.IsNegative() {
			return &ConfigError{RuleID: rule.ID, CalcType: rule.CalcType(), Reason: "thresholdValue must not be negative"}
		}
	default:
		return &ConfigError{
			RuleID:   rule.ID,
			CalcType: rule.CalcType(),
			Reason:   fmt.Sprintf("unknown calcType %q", rule.CalcType()),
		}
	}

	if rule.QualificationID != 0 {
		if _, ok := qualifications[rule.QualificationID]; !ok {
			return &ConfigError{
				RuleID:   rule.ID,
				CalcType: rule.CalcType(),
				Reason:   fmt.Sprintf("references undefined qualification %d", rule.QualificationID),
			}
		}
	}
	return nil
}
