package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/opslens-cli/internal/entitygraph"
	"github.com/xkilldash9x/opslens-cli/internal/gitmeta"
	"github.com/xkilldash9x/opslens-cli/internal/graphql"
	"github.com/xkilldash9x/opslens-cli/internal/insights"
	"github.com/xkilldash9x/opslens-cli/internal/observability"
)

var insightFlags = struct {
	componentID     string
	componentSlug   string
	repositoryID    string
	repositorySlug  string
	applicationID   string
	applicationSlug string
	workspace       string
}{}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Fetch the insight bundle for the current workspace",
	Long: `Resolves the configured identifiers (IDs, short IDs, or the git remote of
the workspace) into repository/component/application entities and prints the
aggregated dependencies, vulnerabilities and incidents as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := newResolver()
		if err != nil {
			return err
		}

		aggregator := insights.NewAggregator(resolver, gitmeta.NewProvider(), cfg.Insights.MaxItems, observability.GetLogger())
		bundle := aggregator.FetchInsights(cmd.Context(), identifiersFromFlags())

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(bundle); err != nil {
			return fmt.Errorf("encoding insight bundle: %w", err)
		}
		return nil
	},
}

// newResolver wires the transport and entity resolver from configuration.
func newResolver() (*entitygraph.Resolver, error) {
	transport, err := graphql.New(graphql.Config{
		Endpoint:        cfg.API.Endpoint,
		Token:           cfg.API.Token,
		MaxRetries:      cfg.API.MaxRetries,
		RetryBackoff:    cfg.API.RetryBackoff,
		RateLimit:       cfg.API.RateLimit,
		RateBurst:       cfg.API.RateBurst,
		RequestTimeout:  cfg.API.RequestTimeout,
		IgnoreTLSErrors: cfg.API.IgnoreTLSErrors,
	})
	if err != nil {
		return nil, err
	}
	return entitygraph.NewResolver(transport, observability.GetLogger()), nil
}

func identifiersFromFlags() insights.Identifiers {
	workspace := insightFlags.workspace
	if workspace == "" && len(cfg.Workspace.Roots) > 0 {
		workspace = cfg.Workspace.Roots[0]
	}
	return insights.Identifiers{
		ComponentID:     insightFlags.componentID,
		ComponentSlug:   insightFlags.componentSlug,
		RepositoryID:    insightFlags.repositoryID,
		RepositorySlug:  insightFlags.repositorySlug,
		ApplicationID:   insightFlags.applicationID,
		ApplicationSlug: insightFlags.applicationSlug,
		WorkspacePath:   workspace,
	}
}

// registerIdentifierFlags attaches the shared identifier flags to a command.
func registerIdentifierFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&insightFlags.componentID, "component-id", "", "component entity ID")
	cmd.Flags().StringVar(&insightFlags.componentSlug, "component", "", "component short ID or slug")
	cmd.Flags().StringVar(&insightFlags.repositoryID, "repository-id", "", "repository entity ID")
	cmd.Flags().StringVar(&insightFlags.repositorySlug, "repository", "", "repository short ID or slug")
	cmd.Flags().StringVar(&insightFlags.applicationID, "application-id", "", "application entity ID")
	cmd.Flags().StringVar(&insightFlags.applicationSlug, "application", "", "application short ID or slug")
	cmd.Flags().StringVar(&insightFlags.workspace, "workspace", "", "workspace path for git remote detection (default: first configured root)")
}

func init() {
	registerIdentifierFlags(insightsCmd)
	rootCmd.AddCommand(insightsCmd)
}
