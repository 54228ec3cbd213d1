package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/opslens-cli/internal/diagnostics"
	"github.com/xkilldash9x/opslens-cli/internal/gitmeta"
	"github.com/xkilldash9x/opslens-cli/internal/insights"
	"github.com/xkilldash9x/opslens-cli/internal/observability"
	"github.com/xkilldash9x/opslens-cli/internal/reporting"
	"github.com/xkilldash9x/opslens-cli/internal/workspace"
)

var diagnosticsFlags = struct {
	format string
	output string
}{}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Project open vulnerabilities onto workspace files",
	Long: `Fetches the insight bundle, resolves each open vulnerability to a file
location inside the workspace, and emits the resulting per-file diagnostics
as grouped JSON or a SARIF 2.1.0 report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		resolver, err := newResolver()
		if err != nil {
			return err
		}

		aggregator := insights.NewAggregator(resolver, gitmeta.NewProvider(), cfg.Insights.MaxItems, logger)
		bundle := aggregator.FetchInsights(cmd.Context(), identifiersFromFlags())
		logger.Info("Fetched insight bundle",
			zap.Int("vulnerabilities", len(bundle.Vulnerabilities)),
			zap.Int("dependencies", len(bundle.Dependencies)),
		)

		files := workspace.NewResolver(cfg.Workspace.Roots, cfg.Workspace.ExcludeDirs, logger)

		projector := diagnostics.NewProjector(resolver, files, cfg.Insights.DetailConcurrency, logger)
		grouped := projector.BuildDiagnostics(cmd.Context(), bundle.Vulnerabilities)

		reporter, err := reporting.New(diagnosticsFlags.format, diagnosticsFlags.output, Version, logger)
		if err != nil {
			return err
		}
		if err := reporter.Write(grouped); err != nil {
			reporter.Close()
			return err
		}
		return reporter.Close()
	},
}

func init() {
	registerIdentifierFlags(diagnosticsCmd)
	diagnosticsCmd.Flags().StringVarP(&diagnosticsFlags.format, "format", "f", "json", "output format: json or sarif")
	diagnosticsCmd.Flags().StringVarP(&diagnosticsFlags.output, "output", "o", "", "output file path (default: stdout)")
	rootCmd.AddCommand(diagnosticsCmd)
}
