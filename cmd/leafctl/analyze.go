package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/leafdoctor/internal/application/analyzer"
	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
)

func analyzeCommand(a *app) *cobra.Command {
	var (
		save   bool
		label  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [image]",
		Short: "Diagnose a leaf photo",
		Long:  "Send a local image to the inference service and print the diagnosis. With --save the result is added to the gallery.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			wf := analyzer.New("leafctl", analyzer.Deps{
				Analyzer: a.analyzer(),
				Save: func(ctx context.Context, item *gallery.Item) error {
					_, err := a.gallery.Add(ctx, item)
					return err
				},
				MaxUploadBytes: a.cfg.Sessions.MaxUploadBytes,
				Log:            a.log.Named("analyzer"),
			})
			defer wf.Close()

			if err := wf.Upload(f); err != nil {
				return err
			}
			res, err := wf.Analyze(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				printResult(out, res)
			}

			if !save {
				return nil
			}
			if label != "" {
				if err := wf.SetLabel(label); err != nil {
					return err
				}
			}
			item, err := wf.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s as %q (%d in gallery)\n", item.ID, item.DisplayName(), a.gallery.Count())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&save, "save", "s", false, "Save the diagnosis to the gallery")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Name to save the diagnosis under (default: plant name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the diagnosis as JSON")

	return cmd
}

func printResult(w io.Writer, r *diagnosis.AnalysisResult) {
	fmt.Fprintf(w, "Plant:       %s\n", r.PlantName)
	fmt.Fprintf(w, "Status:      %s\n", r.HealthStatus)
	if r.HasDisease() {
		fmt.Fprintf(w, "Disease:     %s\n", r.DiseaseName)
	}
	fmt.Fprintf(w, "Confidence:  %.0f%%\n", r.Confidence*100)
	if r.Description != "" {
		fmt.Fprintf(w, "\n%s\n", r.Description)
	}
	printList(w, "Symptoms", r.Symptoms)
	printList(w, "Recommendations", r.Recommendations)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", strings.TrimSpace(it))
	}
}
