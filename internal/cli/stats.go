package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fulvian/devstream/pkg/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.Store.GetStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database:         %s\n", a.Config.Database.Path)
	fmt.Fprintf(out, "Schema version:   %s\n", status.SchemaVersion)
	fmt.Fprintf(out, "Build mode:       %s\n", status.BuildMode)
	fmt.Fprintf(out, "Embedder:         %s/%s (%d dims)\n", a.Embedder.Provider(), a.Embedder.Model(), a.Embedder.Dimension())
	fmt.Fprintf(out, "Entries:          %d (%d embedded, %d archived)\n", status.TotalEntries, status.EmbeddedEntries, status.ArchivedEntries)
	if !status.LastEntryAt.IsZero() {
		fmt.Fprintf(out, "Last entry:       %s\n", status.LastEntryAt.Format("2006-01-02 15:04:05"))
	}

	byType := make([]types.ContentType, 0, len(status.EntriesByType))
	for ct := range status.EntriesByType {
		byType = append(byType, ct)
	}
	sort.Slice(byType, func(i, j int) bool { return byType[i] < byType[j] })
	for _, ct := range byType {
		fmt.Fprintf(out, "  %-14s %d\n", ct, status.EntriesByType[ct])
	}

	stats := a.Searcher.Stats()
	fmt.Fprintf(out, "Embedding cache:  %d/%d\n", stats.Cache.Size, stats.Cache.Capacity)
	return nil
}
