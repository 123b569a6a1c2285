package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/sheetsite/pkg/content"
	"github.com/cuemby/sheetsite/pkg/signals"
	"github.com/cuemby/sheetsite/pkg/types"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Inspect and optimize pages",
}

var pageGetCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Resolve a page and print it as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		variant, _ := cmd.Flags().GetString("variant")
		return withStack(cmd, func(ctx context.Context, st *stack) error {
			page, src, err := st.resolver.Resolve(ctx, args[0], variant)
			if err != nil {
				return err
			}
			out := struct {
				Source string            `yaml:"source"`
				Slug   string            `yaml:"slug"`
				Page   *types.PageEntity `yaml:"page"`
			}{string(src.Origin), src.Slug, page}
			return printYAML(out)
		})
	},
}

var pageSuggestCmd = &cobra.Command{
	Use:   "suggest PATH",
	Short: "Print optimization suggestions for a page",
	Long: `Evaluate the optimization heuristics for a page against the signals
recorded for its path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		variant, _ := cmd.Flags().GetString("variant")
		return withStack(cmd, func(ctx context.Context, st *stack) error {
			page, src, err := st.resolver.Resolve(ctx, args[0], variant)
			if err != nil {
				return err
			}
			stats, err := historyStats(ctx, st, types.NormalizeSlug(args[0]))
			if err != nil {
				return err
			}

			fmt.Printf("Page: %s (%s)\n", src.Slug, src.Origin)
			fmt.Printf("Views: %d  Conversions: %d  Rate: %.2f%%\n\n", stats.Views, stats.Conversions, stats.ConversionRate*100)

			suggestions := signals.Evaluate(page, stats)
			if len(suggestions) == 0 {
				fmt.Println("No suggestions")
				return nil
			}
			fmt.Printf("%-24s %-10s %s\n", "ID", "CONFIDENCE", "ACTION")
			for _, s := range suggestions {
				fmt.Printf("%-24s %-10.2f %s\n", s.ID, s.Confidence, s.SuggestedAction)
				fmt.Printf("%-24s %-10s %s\n", "", "", s.Reason)
			}
			return nil
		})
	},
}

var pageOptimizeCmd = &cobra.Command{
	Use:   "optimize PATH",
	Short: "Apply a suggestion to a page in the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		variant, _ := cmd.Flags().GetString("variant")
		suggestion, _ := cmd.Flags().GetString("suggestion")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		return withStack(cmd, func(ctx context.Context, st *stack) error {
			page, src, err := st.resolver.Resolve(ctx, args[0], variant)
			if err != nil {
				return err
			}
			if src.Origin != content.OriginRemote {
				return fmt.Errorf("%s is served from mock content; seed or apply it to the store first", src.Slug)
			}

			m, ok := signals.Mutate(page, suggestion)
			if !ok {
				return fmt.Errorf("suggestion %s does not apply to %s", suggestion, src.Slug)
			}
			m.Slug = src.Slug

			if dryRun {
				return printYAML(struct {
					Slug   string   `yaml:"slug"`
					Kind   string   `yaml:"kind"`
					Layout []string `yaml:"layout"`
				}{m.Slug, m.Kind, m.Layout})
			}

			fmt.Printf("Applying %s to %s\n", m.Kind, m.Slug)
			if err := st.gateway.UpdatePageLayout(ctx, m); err != nil {
				return fmt.Errorf("failed to update page: %v", err)
			}
			fmt.Printf("✓ Page updated: %v\n", m.Layout)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{pageGetCmd, pageSuggestCmd, pageOptimizeCmd} {
		c.Flags().String("variant", "", "Experiment variant")
	}
	pageOptimizeCmd.Flags().String("suggestion", "", "Suggestion ID to apply (required)")
	pageOptimizeCmd.Flags().Bool("dry-run", false, "Print the new layout without writing it")
	_ = pageOptimizeCmd.MarkFlagRequired("suggestion")

	pageCmd.AddCommand(pageGetCmd)
	pageCmd.AddCommand(pageSuggestCmd)
	pageCmd.AddCommand(pageOptimizeCmd)
}

// historyStats reads recorded signals for slug. A store failure yields
// empty stats so the layout heuristics still run.
func historyStats(ctx context.Context, st *stack, slug string) (signals.Stats, error) {
	history, err := st.gateway.SignalRows(ctx, slug)
	if err != nil {
		if ctx.Err() != nil {
			return signals.Stats{}, ctx.Err()
		}
		fmt.Fprintf(os.Stderr, "Warning: signal history unavailable: %v\n", err)
		return signals.Stats{}, nil
	}
	return signals.StatsOf(history), nil
}

// withStack loads config, opens the store stack and runs fn with a
// context cancelled on interrupt
func withStack(cmd *cobra.Command, fn func(ctx context.Context, st *stack) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), st)
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
