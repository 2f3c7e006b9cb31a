package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/secsignal/internal/app"
	"github.com/ternarybob/secsignal/internal/pipeline"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "List the pipeline stages and data flow",
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	application, err := app.New(context.Background(), config, logger, app.Options{AllowUnconfiguredModels: true})
	if err != nil {
		return err
	}
	defer application.Close()

	var b strings.Builder
	for i, info := range application.Orchestrator.Describe() {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%d. %s", i+1, info.Name)), info.Description)
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("aliases: algotrader → rules, agentictrader → agentic"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("data flow: " + pipeline.DataFlow))

	fmt.Println(titleStyle.Render("SecSignal pipeline"))
	fmt.Println(boxStyle.Render(b.String()))
	return nil
}
