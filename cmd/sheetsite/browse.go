package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/cuemby/sheetsite/pkg/content"
	"github.com/cuemby/sheetsite/pkg/render"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Resolve paths read from stdin, newest first",
	Long: `Read one "PATH [VARIANT]" per line from stdin and resolve each.

A new line supersedes a navigation still in flight, the way a visitor
clicking quickly through the site only ever sees the last page.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, st *stack) error {
			return browse(ctx, content.NewNavigator(st.resolver), os.Stdin, cmd.OutOrStdout())
		})
	},
}

func browse(ctx context.Context, nav *content.Navigator, in io.Reader, out io.Writer) error {
	registry := render.DefaultRegistry()
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	printf := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		path, variant := fields[0], ""
		if len(fields) > 1 {
			variant = fields[1]
		}

		pending := nav.Begin(ctx, path, variant)
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := pending.Wait()
			switch {
			case errors.Is(err, content.ErrSuperseded):
				printf("%s: superseded\n", path)
			case errors.Is(err, content.ErrNotFound):
				printf("%s: not found\n", path)
			case err != nil:
				printf("%s: %v\n", path, err)
			default:
				blocks := render.Assemble(n.Page, registry)
				printf("%s -> %s [%s] %q, %d blocks\n", path, n.Source.Slug, n.Source.Origin, n.Page.MetaTitle, len(blocks))
			}
		}()
	}
	wg.Wait()
	return scanner.Err()
}
