/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts cross the wire as JSON strings ("123.45"), never floats.
  Clients parse them with their own decimal type.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RuleJSON type (shared with persistence)
*/
package api

import (
	"time"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// PLAN / RULE / QUALIFICATION TYPES
// =============================================================================

// PlanDTO represents an incentive plan in API responses.
type PlanDTO struct {
	ID            int64  `json:"id"`
	VentureID     int64  `json:"venture_id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Currency      string `json:"currency"`
	IsActive      bool   `json:"is_active"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
}

// CreatePlanRequest is the request to create a plan.
type CreatePlanRequest struct {
	VentureID     int64  `json:"venture_id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Currency      string `json:"currency,omitempty"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
}

// UpdatePlanRequest updates mutable plan fields. Deactivation is the
// only lifecycle transition; plans are never deleted.
type UpdatePlanRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// QualificationDTO represents a threshold gate.
type QualificationDTO struct {
	ID        int64  `json:"id"`
	PlanID    int64  `json:"plan_id"`
	Name      string `json:"name,omitempty"`
	MetricKey string `json:"metric_key"`
	MinValue  string `json:"min_value"`
}

// =============================================================================
// SIMULATION / SCENARIO TYPES
// =============================================================================

// SimulateRequest drives the what-if endpoint. Mode selects which rule
// sets run:
//
//	current_plan              active plan rules only
//	custom_rules              caller-supplied rules only
//	compare_current_vs_custom both, with a per-user diff
type SimulateRequest struct {
	Mode      string             `json:"mode"`
	VentureID int64              `json:"venture_id"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	UserIDs   []int64            `json:"user_ids,omitempty"`
	Rules     []factory.RuleJSON `json:"rules,omitempty"`
}

// SimulationSideDTO is one side of a simulation (baseline or simulated).
type SimulationSideDTO struct {
	TotalAmount string         `json:"total_amount"`
	PerUser     []UserTotalDTO `json:"per_user"`
	Daily       []UserDayDTO   `json:"daily,omitempty"`
}

// SimulateResponse is the full simulation output. Diff is present only
// in compare mode.
type SimulateResponse struct {
	Mode      string             `json:"mode"`
	VentureID int64              `json:"venture_id"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	Baseline  *SimulationSideDTO `json:"baseline,omitempty"`
	Simulated *SimulationSideDTO `json:"simulated,omitempty"`
	Diff      []UserDiffDTO      `json:"diff,omitempty"`
}

// UserDiffDTO is one user's baseline-vs-simulated delta.
type UserDiffDTO struct {
	UserID    int64  `json:"user_id"`
	Baseline  string `json:"baseline"`
	Simulated string `json:"simulated"`
	Delta     string `json:"delta"`
}

// ScenarioDTO represents a saved what-if configuration.
type ScenarioDTO struct {
	ID        string             `json:"id"`
	VentureID int64              `json:"venture_id"`
	Name      string             `json:"name"`
	Config    ScenarioConfigJSON `json:"config"`
	CreatedBy int64              `json:"created_by,omitempty"`
	CreatedAt string             `json:"created_at,omitempty"`
}

// ScenarioConfigJSON is the stored scenario payload: a window, an
// optional user subset, and a complete rule list.
type ScenarioConfigJSON struct {
	From           string                      `json:"from"`
	To             string                      `json:"to"`
	UserIDs        []int64                     `json:"user_ids,omitempty"`
	Rules          []factory.RuleJSON          `json:"rules"`
	Qualifications []factory.QualificationJSON `json:"qualifications,omitempty"`
}

// CreateScenarioRequest creates a saved scenario.
type CreateScenarioRequest struct {
	VentureID int64              `json:"venture_id"`
	Name      string             `json:"name"`
	Config    ScenarioConfigJSON `json:"config"`
}

// CompareScenariosRequest selects 2-3 saved scenarios to compare.
type CompareScenariosRequest struct {
	ScenarioIDs []string `json:"scenario_ids"`
}

// ScenarioOutcomeDTO is one scenario's aggregate in a comparison.
// Result is null when the scenario could not run; Reason says why.
type ScenarioOutcomeDTO struct {
	ScenarioID string              `json:"scenario_id"`
	Name       string              `json:"name"`
	VentureID  int64               `json:"venture_id"`
	Result     *ScenarioSummaryDTO `json:"result"`
	Reason     string              `json:"reason,omitempty"`
}

// ScenarioSummaryDTO is a scenario's aggregate outcome.
type ScenarioSummaryDTO struct {
	TotalAmount string            `json:"total_amount"`
	TotalUsers  int               `json:"total_users"`
	TotalDays   int               `json:"total_days"`
	PerUser     []ScenarioUserDTO `json:"per_user"`
}

// ScenarioUserDTO is one user's aggregate under one scenario.
type ScenarioUserDTO struct {
	UserID            int64  `json:"user_id"`
	TotalAmount       string `json:"total_amount"`
	DaysWithIncentive int    `json:"days_with_incentive"`
	AvgPerDay         string `json:"avg_per_day"`
}

// =============================================================================
// REPORTING TYPES
// =============================================================================

// DailyIncentiveDTO is one stored day for one user.
type DailyIncentiveDTO struct {
	VentureID    int64             `json:"venture_id"`
	UserID       int64             `json:"user_id"`
	Date         string            `json:"date"`
	Amount       string            `json:"amount"`
	Currency     string            `json:"currency"`
	Breakdown    []ContributionDTO `json:"breakdown,omitempty"`
	RunningTotal string            `json:"running_total,omitempty"`
}

// ContributionDTO is one rule's share of a day.
type ContributionDTO struct {
	RuleID int64  `json:"rule_id"`
	Amount string `json:"amount"`
}

// UserTotalDTO is one user's window total.
type UserTotalDTO struct {
	UserID            int64  `json:"user_id"`
	Name              string `json:"name,omitempty"`
	TotalAmount       string `json:"total_amount"`
	DaysWithIncentive int    `json:"days_with_incentive"`
}

// UserDayDTO is one (user, day) amount in a timeseries.
type UserDayDTO struct {
	UserID int64  `json:"user_id"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
}

// VentureSummaryDTO is the per-user leaderboard for a venture window.
type VentureSummaryDTO struct {
	VentureID   int64          `json:"venture_id"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	TotalAmount string         `json:"total_amount"`
	Users       []UserTotalDTO `json:"users"`
}

// GamificationDTO is the engagement view over stored results.
type GamificationDTO struct {
	UserID            int64    `json:"user_id"`
	From              string   `json:"from"`
	To                string   `json:"to"`
	TotalAmount       string   `json:"total_amount"`
	DaysWithIncentive int      `json:"days_with_incentive"`
	CurrentStreak     int      `json:"current_streak"`
	LongestStreak     int      `json:"longest_streak"`
	Rank              int      `json:"rank"`
	TotalUsers        int      `json:"total_users"`
	Percentile        int      `json:"percentile"`
	Badges            []string `json:"badges"`
}

// RunIncentivesRequest commits one venture/day.
type RunIncentivesRequest struct {
	VentureID int64  `json:"venture_id"`
	Date      string `json:"date,omitempty"` // default: yesterday
}

// RunIncentivesResponse reports the committed day.
type RunIncentivesResponse struct {
	VentureID   int64  `json:"venture_id"`
	Date        string `json:"date"`
	PlanID      int64  `json:"plan_id"`
	UsersPaid   int    `json:"users_paid"`
	UsersTotal  int    `json:"users_total"`
	TotalAmount string `json:"total_amount"`
}

// =============================================================================
// JOB TYPES
// =============================================================================

// RunJobRequest triggers the daily incentive job.
type RunJobRequest struct {
	VentureID *int64 `json:"venture_id,omitempty"` // nil = all active ventures
	Date      string `json:"date,omitempty"`       // default: yesterday
	DryRun    bool   `json:"dry_run,omitempty"`
}

// JobStatsDTO summarizes one job run.
type JobStatsDTO struct {
	Date            string   `json:"date"`
	VenturesTotal   int      `json:"ventures_total"`
	VenturesOK      int      `json:"ventures_ok"`
	VenturesSkipped int      `json:"ventures_skipped"`
	VenturesFailed  int      `json:"ventures_failed"`
	UsersPaid       int      `json:"users_paid"`
	TotalAmount     string   `json:"total_amount"`
	DryRun          bool     `json:"dry_run"`
	Errors          []string `json:"errors,omitempty"`
}

// JobRunLogDTO is one audit row.
type JobRunLogDTO struct {
	ID        string `json:"id"`
	VentureID *int64 `json:"venture_id,omitempty"`
	JobName   string `json:"job_name"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
	Stats     string `json:"stats,omitempty"`
	Error     string `json:"error,omitempty"`
}

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// VentureDTO represents a venture.
type VentureDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	IsActive bool   `json:"is_active"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPlanDTO(p engine.Plan) PlanDTO {
	dto := PlanDTO{
		ID:            int64(p.ID),
		VentureID:     int64(p.VentureID),
		Name:          p.Name,
		Description:   p.Description,
		Currency:      p.Currency,
		IsActive:      p.IsActive,
		EffectiveFrom: p.EffectiveFrom.String(),
	}
	if !p.EffectiveTo.IsZero() {
		dto.EffectiveTo = p.EffectiveTo.String()
	}
	return dto
}

func toQualificationDTO(q engine.Qualification) QualificationDTO {
	return QualificationDTO{
		ID:        int64(q.ID),
		PlanID:    int64(q.PlanID),
		Name:      q.Name,
		MetricKey: q.MetricKey,
		MinValue:  q.MinValue.String(),
	}
}

func toContributionDTOs(breakdown []engine.Contribution) []ContributionDTO {
	dtos := make([]ContributionDTO, len(breakdown))
	for i, c := range breakdown {
		dtos[i] = ContributionDTO{RuleID: int64(c.RuleID), Amount: c.Amount.String()}
	}
	return dtos
}

func toDailyDTO(r engine.DailyResult) DailyIncentiveDTO {
	return DailyIncentiveDTO{
		VentureID: int64(r.VentureID),
		UserID:    int64(r.UserID),
		Date:      r.Date.String(),
		Amount:    r.Amount.String(),
		Currency:  r.Currency,
		Breakdown: toContributionDTOs(r.Breakdown),
	}
}

func toScenarioSummaryDTO(s *engine.ScenarioSummary) *ScenarioSummaryDTO {
	if s == nil {
		return nil
	}
	perUser := make([]ScenarioUserDTO, len(s.PerUser))
	for i, u := range s.PerUser {
		perUser[i] = ScenarioUserDTO{
			UserID:            int64(u.UserID),
			TotalAmount:       u.TotalAmount.String(),
			DaysWithIncentive: u.DaysWithIncentive,
			AvgPerDay:         u.AvgPerDay.String(),
		}
	}
	return &ScenarioSummaryDTO{
		TotalAmount: s.TotalAmount.String(),
		TotalUsers:  s.TotalUsers,
		TotalDays:   s.TotalDays,
		PerUser:     perUser,
	}
}

func toJobRunLogDTO(j sqlite.JobRunLog) JobRunLogDTO {
	return JobRunLogDTO{
		ID:        j.ID,
		VentureID: j.VentureID,
		JobName:   j.JobName,
		Status:    j.Status,
		StartedAt: j.StartedAt.Format(time.RFC3339),
		EndedAt:   j.EndedAt.Format(time.RFC3339),
		Stats:     j.StatsJSON,
		Error:     j.Error,
	}
}
