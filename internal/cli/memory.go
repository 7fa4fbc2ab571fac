package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fulvian/devstream/internal/memory"
	"github.com/fulvian/devstream/pkg/types"
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a memory",
	Long: `Store a memory. Keywords, entities, complexity and the embedding are
derived from the content.

Examples:
  devstream remember --type learning "sqlite FTS5 needs the rowid join"
  devstream remember --type code --task auth-42 "$(cat refresh.go)"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemember,
}

var archiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Hide a memory from search",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchive,
}

func init() {
	rememberCmd.Flags().StringP("type", "t", string(types.ContentContext), "content type ("+joinContentTypes()+")")
	rememberCmd.Flags().String("format", "", "content format (detected when empty)")
	rememberCmd.Flags().StringSlice("keywords", nil, "extra keywords")
	rememberCmd.Flags().String("task", "", "task ID")
	rememberCmd.Flags().String("phase", "", "phase ID")
	rememberCmd.Flags().String("plan", "", "plan ID")
	rememberCmd.Flags().Bool("no-embed", false, "store without an embedding")

	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(archiveCmd)
}

func runRemember(cmd *cobra.Command, args []string) error {
	typeName, _ := cmd.Flags().GetString("type")
	contentType, err := types.ParseContentType(typeName)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	keywords, _ := cmd.Flags().GetStringSlice("keywords")
	taskID, _ := cmd.Flags().GetString("task")
	phaseID, _ := cmd.Flags().GetString("phase")
	planID, _ := cmd.Flags().GetString("plan")
	noEmbed, _ := cmd.Flags().GetBool("no-embed")

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	entry, err := a.Memory.Remember(ctx, memory.RememberRequest{
		Content:       strings.Join(args, " "),
		ContentType:   contentType,
		ContentFormat: format,
		Keywords:      keywords,
		TaskID:        taskID,
		PhaseID:       phaseID,
		PlanID:        planID,
		SkipEmbedding: noEmbed,
	})
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stored %s\n", entry.ID)
	fmt.Fprintf(out, "  type:       %s (%s)\n", entry.ContentType, entry.ContentFormat)
	fmt.Fprintf(out, "  keywords:   %s\n", strings.Join(entry.Keywords, ", "))
	if len(entry.Entities) > 0 {
		fmt.Fprintf(out, "  entities:   %s\n", strings.Join(entry.Entities, ", "))
	}
	fmt.Fprintf(out, "  complexity: %d\n", entry.ComplexityScore)
	fmt.Fprintf(out, "  embedded:   %v\n", entry.HasEmbedding())
	return nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.Memory.Archive(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", args[0])
	return nil
}

func joinContentTypes() string {
	names := make([]string, len(types.AllContentTypes))
	for i, ct := range types.AllContentTypes {
		names[i] = string(ct)
	}
	return strings.Join(names, ", ")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
