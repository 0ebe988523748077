/*
Package factory provides JSON to Go incentive-rule conversion.

PURPOSE:
  Converts JSON rule and plan definitions into validated engine types.
  This enables plan configuration without code changes - leadership can
  define rules in the admin UI, and the factory creates the proper Go
  structs, rejecting broken configurations before the engine ever sees
  them.

JSON SCHEMA:
  {
    "id": 1,
    "plan_id": 1,
    "role_key": "SALES",
    "metric_key": "loads_revenue",
    "calc_type": "PERCENT_OF_METRIC",
    "rate": 0.02,
    "currency": "USD",
    "is_enabled": true,
    "config": {
      "threshold_value": 10,
      "bonus_amount": 500
    }
  }

LOAD-TIME REJECTION:
  An unknown calc_type, a rate-based rule without a rate, or a
  BONUS_ON_TARGET without threshold/bonus config is a fatal
  configuration error here. Silently skipping a malformed rule would
  understate pay, so nothing malformed gets past construction.

SEE ALSO:
  - engine/rule.go: Evaluation and rule-set validation
  - store/sqlite: Stores rules in this JSON shape and parses on load
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of an incentive rule.
type RuleJSON struct {
	ID              int64           `json:"id,omitempty"`
	PlanID          int64           `json:"plan_id,omitempty"`
	RoleKey         string          `json:"role_key,omitempty"`
	MetricKey       string          `json:"metric_key"`
	CalcType        string          `json:"calc_type"`
	Rate            *float64        `json:"rate,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	QualificationID int64           `json:"qualification_id,omitempty"`
	Config          *RuleConfigJSON `json:"config,omitempty"`
	IsEnabled       *bool           `json:"is_enabled,omitempty"`
}

// RuleConfigJSON carries BONUS_ON_TARGET parameters. TargetValue is an
// accepted alias for ThresholdValue for backwards compatibility with
// older stored rules.
type RuleConfigJSON struct {
	MetricKey      string   `json:"metric_key,omitempty"`
	ThresholdValue *float64 `json:"threshold_value,omitempty"`
	TargetValue    *float64 `json:"target_value,omitempty"`
	BonusAmount    *float64 `json:"bonus_amount,omitempty"`
}

// QualificationJSON is the JSON representation of a threshold gate.
type QualificationJSON struct {
	ID        int64   `json:"id,omitempty"`
	PlanID    int64   `json:"plan_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	MetricKey string  `json:"metric_key"`
	MinValue  float64 `json:"min_value"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

type RuleFactory struct{}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule converts one JSON rule into a validated engine.Rule.
func (f *RuleFactory) ParseRule(rj RuleJSON) (engine.Rule, error) {
	rule := engine.Rule{
		ID:              engine.RuleID(rj.ID),
		PlanID:          engine.PlanID(rj.PlanID),
		RoleKey:         rj.RoleKey,
		MetricKey:       rj.MetricKey,
		Currency:        rj.Currency,
		IsEnabled:       rj.IsEnabled == nil || *rj.IsEnabled,
		QualificationID: engine.QualificationID(rj.QualificationID),
	}
	if rule.Currency == "" {
		rule.Currency = "USD"
	}
	if rule.MetricKey == "" {
		return engine.Rule{}, &engine.ConfigError{
			RuleID: rule.ID, CalcType: engine.CalcType(rj.CalcType), Reason: "metric_key is required",
		}
	}

	calc, err := parseCalc(rule.ID, rj)
	if err != nil {
		return engine.Rule{}, err
	}
	rule.Calc = calc
	return rule, nil
}

// ParseRules converts a full rule list, failing on the first invalid
// entry.
func (f *RuleFactory) ParseRules(rjs []RuleJSON) ([]engine.Rule, error) {
	rules := make([]engine.Rule, 0, len(rjs))
	for _, rj := range rjs {
		rule, err := f.ParseRule(rj)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ParseRulesJSON parses a JSON array of rules.
func (f *RuleFactory) ParseRulesJSON(data []byte) ([]engine.Rule, error) {
	var rjs []RuleJSON
	if err := json.Unmarshal(data, &rjs); err != nil {
		return nil, fmt.Errorf("invalid rules JSON: %w", err)
	}
	return f.ParseRules(rjs)
}

// ParseQualification converts one JSON gate definition.
func (f *RuleFactory) ParseQualification(qj QualificationJSON) engine.Qualification {
	return engine.Qualification{
		ID:        engine.QualificationID(qj.ID),
		PlanID:    engine.PlanID(qj.PlanID),
		Name:      qj.Name,
		MetricKey: qj.MetricKey,
		MinValue:  decimal.NewFromFloat(qj.MinValue),
	}
}

// ToJSON converts an engine rule back to its JSON shape (for API
// responses and storage).
func (f *RuleFactory) ToJSON(rule engine.Rule) RuleJSON {
	enabled := rule.IsEnabled
	rj := RuleJSON{
		ID:              int64(rule.ID),
		PlanID:          int64(rule.PlanID),
		RoleKey:         rule.RoleKey,
		MetricKey:       rule.MetricKey,
		CalcType:        string(rule.CalcType()),
		Currency:        rule.Currency,
		QualificationID: int64(rule.QualificationID),
		IsEnabled:       &enabled,
	}

	switch calc := rule.Calc.(type) {
	case engine.PercentOfMetric:
		rate, _ := calc.Rate.Float64()
		rj.Rate = &rate
	case engine.FlatPerUnit:
		rate, _ := calc.Rate.Float64()
		rj.Rate = &rate
	case engine.CurrencyPerDollar:
		rate, _ := calc.Rate.Float64()
		rj.Rate = &rate
	case engine.BonusOnTarget:
		threshold, _ := calc.Threshold.Float64()
		bonus, _ := calc.Bonus.Float64()
		rj.Config = &RuleConfigJSON{
			MetricKey:      calc.MetricKey,
			ThresholdValue: &threshold,
			BonusAmount:    &bonus,
		}
	}
	return rj
}

// =============================================================================
// CALC PARSING
// =============================================================================

func parseCalc(ruleID engine.RuleID, rj RuleJSON) (engine.Calc, error) {
	calcType := engine.CalcType(rj.CalcType)

	switch calcType {
	case engine.CalcPercentOfMetric, engine.CalcFlatPerUnit, engine.CalcCurrencyPerDollar:
		if rj.Rate == nil {
			return nil, &engine.ConfigError{RuleID: ruleID, CalcType: calcType, Reason: "rate is required"}
		}
		rate := decimal.NewFromFloat(*rj.Rate)
		if rate.IsNegative() {
			return nil, &engine.ConfigError{RuleID: ruleID, CalcType: calcType, Reason: "rate must not be negative"}
		}
		switch calcType {
		case engine.CalcPercentOfMetric:
			return engine.PercentOfMetric{Rate: rate}, nil
		case engine.CalcFlatPerUnit:
			return engine.FlatPerUnit{Rate: rate}, nil
		default:
			return engine.CurrencyPerDollar{Rate: rate}, nil
		}

	case engine.CalcBonusOnTarget:
		if rj.Config == nil {
			return nil, &engine.ConfigError{RuleID: ruleID, CalcType: calcType, Reason: "config is required"}
		}
		threshold := rj.Config.ThresholdValue
		if threshold == nil {
			threshold = rj.Config.TargetValue
		}
		if threshold == nil {
			return nil, &engine.ConfigError{RuleID: ruleID, CalcType: calcType, Reason: "config.threshold_value is required"}
		}
		if rj.Config.BonusAmount == nil {
			return nil, &engine.ConfigError{RuleID: ruleID, CalcType: calcType, Reason: "config.bonus_amount is required"}
		}
		return engine.BonusOnTarget{
			MetricKey: rj.Config.MetricKey,
			Threshold: decimal.NewFromFloat(*threshold),
			Bonus:     decimal.NewFromFloat(*rj.Config.BonusAmount),
		}, nil

	default:
		return nil, &engine.ConfigError{
			RuleID:   ruleID,
			CalcType: calcType,
			Reason:   fmt.Sprintf("unknown calc_type %q", rj.CalcType),
		}
	}
}
