package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Admission Pipeline Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Per-module daily summary
	sb.WriteString("## Daily Summary\n\n")
	if len(r.Rows) > 0 {
		sb.WriteString("| Day | Module | Created | Admitted | Rejected | AdmitRate | MeanConf | MeanLatency(ms) | Aggressiveness |\n")
		sb.WriteString("|-----|--------|---------|----------|----------|-----------|----------|-----------------|----------------|\n")
		for _, row := range r.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %.4f | %.4f | %.2f | %.4f |\n",
				FormatDay(row.Day), row.Module,
				row.Created, row.Admitted, row.Rejected,
				row.AdmitRate, row.MeanConfidence, row.MeanLatencyMs, row.Aggressiveness))
		}
	} else {
		sb.WriteString("No audit records found.\n")
	}
	sb.WriteString("\n")

	// Rejection breakdown
	sb.WriteString("## Rejection Reasons\n\n")
	wrote := false
	for _, row := range r.Rows {
		if len(row.RejectionReasons) == 0 {
			continue
		}
		if !wrote {
			sb.WriteString("| Day | Module | Reason | Count |\n")
			sb.WriteString("|-----|--------|--------|-------|\n")
			wrote = true
		}
		reasons := make([]string, 0, len(row.RejectionReasons))
		for reason := range row.RejectionReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n",
				FormatDay(row.Day), row.Module, reason, row.RejectionReasons[reason]))
		}
	}
	if !wrote {
		sb.WriteString("No rejections recorded.\n")
	}
	sb.WriteString("\n")

	// Administrative and broker activity
	sb.WriteString("## System Events\n\n")
	wrote = false
	for _, row := range r.Rows {
		if row.Resets == 0 && row.Acks == 0 && row.Nacks == 0 {
			continue
		}
		if !wrote {
			sb.WriteString("| Day | Module | Resets | Acks | Nacks |\n")
			sb.WriteString("|-----|--------|--------|------|-------|\n")
			wrote = true
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d |\n",
			FormatDay(row.Day), row.Module, row.Resets, row.Acks, row.Nacks))
	}
	if !wrote {
		sb.WriteString("No system events recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
