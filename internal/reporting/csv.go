package reporting

import (
	"fmt"
	"strings"

	"trade-intent-lab/internal/domain"
)

// RenderCSV renders module/day summary rows as a CSV string.
func RenderCSV(rows []ModuleDayRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("day,module,created,admitted,rejected,")
	sb.WriteString("ttl_expired,daily_limit,cooldown,one_position,broker_error,")
	sb.WriteString("admit_rate,mean_confidence,mean_latency_ms,aggressiveness,resets,acks,nacks\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%.4f,%.4f,%.2f,%.4f,%d,%d,%d\n",
			FormatDay(r.Day),
			r.Module,
			r.Created,
			r.Admitted,
			r.Rejected,
			r.RejectionReasons[domain.ReasonTTLExpired],
			r.RejectionReasons[domain.ReasonDailyLimit],
			r.RejectionReasons[domain.ReasonCooldown],
			r.RejectionReasons[domain.ReasonOnePosition],
			r.RejectionReasons[domain.ReasonBrokerError],
			r.AdmitRate,
			r.MeanConfidence,
			r.MeanLatencyMs,
			r.Aggressiveness,
			r.Resets,
			r.Acks,
			r.Nacks,
		))
	}

	return sb.String()
}
