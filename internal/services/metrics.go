package services

import "github.com/prometheus/client_golang/prometheus"

// Completion outcomes.
const (
	outcomeAwarded   = "awarded"   // full reward credited
	outcomeCapped    = "capped"    // reward truncated by the daily cap, possibly to zero
	outcomeDuplicate = "duplicate" // already completed today
	outcomeClaimed   = "claimed"
)

// Currency kinds.
const (
	kindPrimary = "primary"
	kindBonus   = "bonus"
)

var (
	// taskCompletions counts CompleteTask results by outcome.
	taskCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garden_task_completions_total",
			Help: "Task completion requests by outcome.",
		},
		[]string{"outcome"},
	)

	// currencyAwarded sums currency credited to wallets by kind.
	currencyAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garden_currency_awarded_total",
			Help: "Currency units credited to wallets.",
		},
		[]string{"kind"},
	)

	// bonusClaims counts ClaimAllDoneBonus results by outcome (claimed, duplicate).
	bonusClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garden_bonus_claims_total",
			Help: "All-done bonus claims by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(taskCompletions, currencyAwarded, bonusClaims)
}
