package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"inferd/internal/backend"
	"inferd/internal/prompt"
	"inferd/internal/registry"
	"inferd/pkg/types"
)

func newModelsCmd(o *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models in models_dir, or the remote backend's models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			kind, err := backend.ParseKind(cfg.Backend.Kind)
			if err != nil {
				return err
			}
			var models []types.Model
			if kind == backend.KindLocal {
				if models, err = registry.LoadDir(cfg.ModelsDir); err != nil {
					return err
				}
			} else {
				b, err := backend.New(backend.Config{Kind: kind, URL: cfg.Backend.URL, APIKey: cfg.Backend.APIKey, Logger: log})
				if err != nil {
					return err
				}
				names, err := b.ListModels(cmd.Context())
				if err != nil {
					return err
				}
				for _, n := range names {
					models = append(models, types.Model{ID: n, Name: n, Format: prompt.InferFormat(n).String()})
				}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if models == nil {
					models = []types.Model{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(types.ModelsResponse{Models: models})
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tQUANT\tTEMPLATE\tSIZE")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Quant, m.Format, humanSize(m.SizeBytes))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats [model]",
		Short: "List prompt templates, or show the one a model name infers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				fmt.Fprintln(out, prompt.InferFormat(args[0]))
				return nil
			}
			for _, f := range prompt.Formats() {
				marker := ""
				if f == prompt.DefaultFormat {
					marker = " (default)"
				}
				fmt.Fprintf(out, "%s%s\n", f, marker)
			}
			return nil
		},
	}
}

func humanSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
