package main

import (
	"fmt"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
)

// galleryCommand creates the gallery parent command
func galleryCommand(a *app) *cobra.Command {
	galleryCmd := &cobra.Command{
		Use:     "gallery",
		Aliases: []string{"g"},
		Short:   "Browse and manage saved diagnoses",
	}

	galleryCmd.AddCommand(
		galleryListCommand(a),
		galleryStatsCommand(a),
		galleryRemoveCommand(a),
	)
	return galleryCmd
}

func galleryListCommand(a *app) *cobra.Command {
	var (
		text, status, from, to string
		asJSON                 bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved diagnoses, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := gallery.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			items, err := a.gallery.Find(gallery.Query{
				Text:      text,
				Status:    sf,
				DateStart: from,
				DateEnd:   to,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "no matching diagnoses")
				return nil
			}
			loc, _ := a.cfg.Location()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tDISEASE\tSAVED")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					it.ID,
					it.DisplayName(),
					it.Analysis.HealthStatus,
					it.Analysis.DiseaseName,
					it.SavedAt().In(loc).Format("2006-01-02 15:04"),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&text, "query", "q", "", "Match plant or custom name (case-insensitive)")
	cmd.Flags().StringVar(&status, "status", "All", "Status filter: All, Healthy, Diseased")
	cmd.Flags().StringVar(&from, "from", "", "Earliest save date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Latest save date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print items as JSON")

	return cmd
}

func galleryStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show gallery totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.gallery.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d\nhealthy: %d\ndiseased: %d\n", s.Total, s.Healthy, s.Diseased)
			return nil
		},
	}
}

func galleryRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a saved diagnosis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, err := a.gallery.Get(id); err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			items, err := a.gallery.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s (%d left)\n", id, len(items))
			return nil
		},
	}
}
