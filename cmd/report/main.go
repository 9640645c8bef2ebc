// Package main provides the report tool: reads the per-day audit JSONL
// files and renders module/day summaries as CSV and Markdown.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"trade-intent-lab/internal/config"
	"trade-intent-lab/internal/reporting"
)

func main() {
	env := config.LoadEnv()

	auditDir := flag.String("audit-dir", env.AuditDir, "Audit JSONL directory")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	stdout := flag.Bool("stdout", false, "Print the Markdown report instead of writing files")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	report, err := reporting.NewGenerator(*auditDir).Generate()
	if err != nil {
		logger.Fatalf("Report generation failed: %v", err)
	}

	if *stdout {
		fmt.Print(reporting.RenderMarkdown(report))
		return
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("Failed to create output directory: %v", err)
	}

	csvPath := filepath.Join(*outputDir, "daily_summary.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Rows)), 0o644); err != nil {
		logger.Fatalf("Failed to write %s: %v", csvPath, err)
	}

	mdPath := filepath.Join(*outputDir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		logger.Fatalf("Failed to write %s: %v", mdPath, err)
	}

	fmt.Printf("Report generated from %d module/day slices:\n", len(report.Rows))
	fmt.Printf("  - %s\n", csvPath)
	fmt.Printf("  - %s\n", mdPath)
}
