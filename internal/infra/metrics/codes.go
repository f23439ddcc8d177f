package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		codesIssuedTotal,
		codesByStatus,
		redemptionsTotal,
	)
}

var (
	// source: payment|unlock_key
	codesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_codes_issued_total",
			Help: "Activation codes and unlock keys minted, by source.",
		},
		[]string{"source"},
	)

	codesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "activation_codes",
			Help: "Codes in the store by computed status, refreshed periodically.",
		},
		[]string{"status"}, // 'active', 'used', 'expired'
	)

	// endpoint: verify|redeem
	// result: ok|invalid|bad_request|rate_limited|error
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "code_redemptions_total",
			Help: "Redemption attempts by endpoint and result.",
		},
		[]string{"endpoint", "result"},
	)
)

func IncCodeIssued(source string) {
	codesIssuedTotal.WithLabelValues(norm(source)).Inc()
}

func SetCodeStats(active, used, expired int) {
	codesByStatus.WithLabelValues("active").Set(float64(active))
	codesByStatus.WithLabelValues("used").Set(float64(used))
	codesByStatus.WithLabelValues("expired").Set(float64(expired))
}

func IncRedemption(endpoint, result string) {
	redemptionsTotal.WithLabelValues(norm(endpoint), norm(result)).Inc()
}
