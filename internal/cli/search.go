package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fulvian/devstream/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid search over stored memories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Assemble token-budgeted context for a query",
	Long: `Assemble token-budgeted context for a query and print it.

Examples:
  devstream context "implement token refresh"
  devstream context --budget 500 --strategy recency --task auth-42 "refresh"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

func init() {
	searchCmd.Flags().IntP("limit", "n", 0, "maximum results (default search.max_results)")
	searchCmd.Flags().StringSlice("type", nil, "restrict to content types")
	searchCmd.Flags().String("task", "", "restrict to a task")
	searchCmd.Flags().Float64("min-relevance", -1, "minimum fused score (default search.min_relevance)")
	searchCmd.Flags().Bool("archived", false, "include archived memories")
	searchCmd.Flags().Bool("json", false, "print results as JSON")

	contextCmd.Flags().IntP("budget", "b", -1, "token budget (default context.token_budget)")
	contextCmd.Flags().StringP("strategy", "s", "", "relevance, recency, complexity or mixed (default context.strategy)")
	contextCmd.Flags().String("task", "", "only use memories of this task")
	contextCmd.Flags().String("type", "", "only use memories of this content type")
	contextCmd.Flags().Bool("stats", false, "print token accounting to stderr")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(contextCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	query := a.Config.DefaultQuery(strings.Join(args, " "))
	if n, _ := cmd.Flags().GetInt("limit"); n > 0 {
		query.MaxResults = n
	}
	if v, _ := cmd.Flags().GetFloat64("min-relevance"); v >= 0 {
		query.MinRelevanceScore = v
	}
	typeNames, _ := cmd.Flags().GetStringSlice("type")
	for _, name := range typeNames {
		ct, err := types.ParseContentType(name)
		if err != nil {
			return err
		}
		query.Filters.ContentTypes = append(query.Filters.ContentTypes, ct)
	}
	query.Filters.TaskID, _ = cmd.Flags().GetString("task")
	query.Filters.IncludeArchived, _ = cmd.Flags().GetBool("archived")

	ctx, cancel := signalContext()
	defer cancel()

	results, err := a.Searcher.HybridSearch(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(out, searchOutput(results))
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No memories found.")
		return nil
	}
	for _, r := range results {
		found := make([]string, len(r.Contributions))
		for i, c := range r.Contributions {
			found[i] = string(c.Strategy)
		}
		fmt.Fprintf(out, "%2d. %.4f  [%s] %s  (%s)\n", r.Rank, r.Score, r.Entry.ContentType, r.Entry.ID, strings.Join(found, "+"))
		fmt.Fprintf(out, "    %s\n", firstLine(r.Entry.Content, 100))
	}
	return nil
}

func runContext(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	queryText := strings.Join(args, " ")
	budget, _ := cmd.Flags().GetInt("budget")
	if budget < 0 {
		budget = a.Config.Context.TokenBudget
	}
	strategy := a.Config.DefaultStrategy()
	if s, _ := cmd.Flags().GetString("strategy"); s != "" {
		if strategy, err = types.ParsePrioritizationStrategy(s); err != nil {
			return err
		}
	}
	taskID, _ := cmd.Flags().GetString("task")
	typeName, _ := cmd.Flags().GetString("type")

	ctx, cancel := signalContext()
	defer cancel()

	var result *types.ContextAssemblyResult
	switch {
	case taskID != "":
		result, err = a.Assembler.AssembleContextForTask(ctx, taskID, queryText, strategy, budget)
	case typeName != "":
		result, err = a.Assembler.AssembleContextByType(ctx, types.ContentType(typeName), queryText, strategy, budget)
	default:
		result, err = a.Assembler.AssembleContext(ctx, a.Config.DefaultQuery(queryText), strategy, budget)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Context)
	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		fmt.Fprintf(cmd.ErrOrStderr(), "memories=%d tokens=%d/%d remaining=%d truncated=%v strategy=%s\n",
			result.MemoryCount, result.TotalTokens, result.TokenBudget, result.TokensRemaining, result.Truncated, result.Strategy)
	}
	return nil
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}

type searchHit struct {
	Rank        int                `json:"rank"`
	Score       float64            `json:"score"`
	ID          string             `json:"id"`
	ContentType types.ContentType  `json:"content_type"`
	Content     string             `json:"content"`
	FoundBy     map[string]float64 `json:"found_by"`
}

func searchOutput(results []types.SearchResult) []searchHit {
	hits := make([]searchHit, len(results))
	for i, r := range results {
		foundBy := make(map[string]float64, len(r.Contributions))
		for _, c := range r.Contributions {
			foundBy[string(c.Strategy)] = c.NormalizedScore
		}
		hits[i] = searchHit{
			Rank:        r.Rank,
			Score:       r.Score,
			ID:          r.Entry.ID,
			ContentType: r.Entry.ContentType,
			Content:     r.Entry.Content,
			FoundBy:     foundBy,
		}
	}
	return hits
}
