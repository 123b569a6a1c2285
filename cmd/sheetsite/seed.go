package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/sheetsite/pkg/content"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the built-in mock content into the store",
	Long: `Write the built-in mock settings and pages into the configured store.

Mostly useful with --store bolt to get a local site running without a
spreadsheet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, st *stack) error {
			mock := content.NewMockSet()
			global, pages := mock.Rows()

			fmt.Printf("Seeding %s store\n", st.backend.Name())
			if err := st.gateway.PutGlobal(ctx, global); err != nil {
				return fmt.Errorf("failed to seed settings: %v", err)
			}
			fmt.Printf("✓ %d settings\n", len(global))

			for _, p := range pages {
				if err := st.gateway.UpsertPage(ctx, p); err != nil {
					return fmt.Errorf("failed to seed page %s: %v", p.Slug, err)
				}
				fmt.Printf("✓ Page %s\n", p.Slug)
			}
			return nil
		})
	},
}
