package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/sheetsite/pkg/content"
	"github.com/cuemby/sheetsite/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply page and settings definitions from a YAML file",
	Long: `Apply one or more resources from a YAML file to the store.

Page resources are validated before they are written; an existing row
with the same slug is updated, otherwise a new row is inserted.

Examples:
  # Push a page definition
  sheetsite apply -f page.yaml

  # Push site settings
  sheetsite apply -f global.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

// Resource is one document of an apply file
type Resource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       yaml.Node        `yaml:"spec"`
}

type ResourceMetadata struct {
	// Name is the page slug for Page resources
	Name string `yaml:"name"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}
	defer f.Close()

	resources, err := decodeResources(f)
	if err != nil {
		return err
	}

	return withStack(cmd, func(ctx context.Context, st *stack) error {
		for _, r := range resources {
			if err := applyResource(ctx, st, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeResources(r io.Reader) ([]Resource, error) {
	dec := yaml.NewDecoder(r)
	var out []Resource
	for {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %v", err)
		}
		if res.Kind == "" {
			continue
		}
		out = append(out, res)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no resources found")
	}
	return out, nil
}

func applyResource(ctx context.Context, st *stack, r Resource) error {
	switch r.Kind {
	case "Page":
		page, err := pageFromResource(r)
		if err != nil {
			return err
		}
		fmt.Printf("Applying page: %s (%d components)\n", page.Slug, len(page.Layout))
		if err := st.gateway.UpsertPage(ctx, content.PageRow(page)); err != nil {
			return fmt.Errorf("failed to apply page %s: %v", page.Slug, err)
		}
		fmt.Printf("✓ Page applied: %s\n", page.Slug)
		return nil

	case "Global":
		cfg := types.DefaultGlobalConfig()
		if err := r.Spec.Decode(&cfg); err != nil {
			return fmt.Errorf("invalid global spec: %v", err)
		}
		fmt.Println("Applying site settings")
		if err := st.gateway.PutGlobal(ctx, content.GlobalRows(cfg)); err != nil {
			return fmt.Errorf("failed to apply settings: %v", err)
		}
		fmt.Printf("✓ Settings applied: %s\n", cfg.CompanyName)
		return nil

	default:
		return fmt.Errorf("unsupported resource kind: %s", r.Kind)
	}
}

// pageFromResource validates a Page spec the same way rows read from
// the store are validated
func pageFromResource(r Resource) (*types.PageEntity, error) {
	slug := types.NormalizeSlug(r.Metadata.Name)
	if r.Metadata.Name == "" {
		return nil, fmt.Errorf("page metadata.name (slug) is required")
	}
	var candidate map[string]any
	if err := r.Spec.Decode(&candidate); err != nil {
		return nil, fmt.Errorf("invalid page spec %s: %v", slug, err)
	}
	page, err := content.Validate(candidate, slug)
	if err != nil {
		return nil, err
	}
	return page, nil
}
