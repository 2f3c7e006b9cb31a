package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/secsignal/internal/app"
	"github.com/ternarybob/secsignal/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show filing counts by status and the most recent signals",
	RunE:  runStatus,
}

var statusLimit int

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of recent signals to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	storage, err := app.OpenStorage(config, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	counts, err := storage.FilingStorage().CountByStatus(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, status := range models.AllStatuses {
		fmt.Fprintf(&b, "%s %d\n", labelStyle.Render(string(status)), counts[status])
	}
	fmt.Println(titleStyle.Render("Filings"))
	fmt.Println(boxStyle.Render(strings.TrimRight(b.String(), "\n")))

	signals, err := storage.SignalStorage().ListRecent(ctx, statusLimit)
	if err != nil {
		return err
	}

	b.Reset()
	if len(signals) == 0 {
		b.WriteString(mutedStyle.Render("no signals yet"))
	}
	shown := make(map[string]bool)
	for _, recent := range signals {
		if shown[recent.FilingID] {
			continue
		}
		shown[recent.FilingID] = true

		company := recent.FilingID
		if record, err := storage.FilingStorage().Get(ctx, recent.FilingID); err == nil {
			company = fmt.Sprintf("%s %s (%s)", record.CompanyName, record.FormType, recent.FilingID)
		}
		b.WriteString(company + "\n")

		perFiling, err := storage.SignalStorage().ListByFiling(ctx, recent.FilingID)
		if err != nil {
			return err
		}
		for _, s := range perFiling {
			line := fmt.Sprintf("  %s %-10s %.2f",
				signalStyle(s.Signal).Render(fmt.Sprintf("%-4s", s.Signal)),
				s.Strategy,
				s.Confidence,
			)
			if s.Fallback {
				line += mutedStyle.Render("  fallback")
			}
			b.WriteString(line + "\n")
		}
	}
	fmt.Println(titleStyle.Render("Recent signals"))
	fmt.Println(boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	return nil
}
