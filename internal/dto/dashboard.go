package dto

import "time"

type DashboardResponse struct {
	TotalEarned         float64        `json:"total_earned"`
	WithdrawableBalance float64        `json:"withdrawable_balance"`
	CurrentPlan         string         `json:"current_plan"`
	NetworkSize         int            `json:"network_size"`
	RecentActivity      []ActivityItem `json:"recent_activity"`
}

type ActivityItem struct {
	Name       string    `json:"name"`
	Action     string    `json:"action"`
	Level      int       `json:"level,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type SubscriptionResponse struct {
	CurrentPlan string     `json:"current_plan"`
	Status      string     `json:"status"`
	Source      string     `json:"billing_source"`
	CycleEnd    *time.Time `json:"cycle_end,omitempty"`
	Plans       []PlanItem `json:"plans"`
}

type PlanItem struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency"`
	UnlockedDepth int      `json:"unlocked_depth"`
	Features      []string `json:"features"`
}

type ValidateCodeResponse struct {
	Valid bool `json:"valid"`
}
