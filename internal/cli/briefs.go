package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashureev/campaign-consult/internal/store"
)

func newBriefsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "briefs",
		Short: "Inspect archived campaign briefs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived briefs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			asJSON, _ := cmd.Flags().GetBool("json")

			repo, err := opts.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			briefs, err := repo.ListBriefs(cmd.Context(), limit, offset)
			if err != nil {
				return fmt.Errorf("list briefs: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if briefs == nil {
					briefs = []store.BriefSummary{}
				}
				b, _ := json.MarshalIndent(briefs, "", "  ")
				fmt.Fprintln(out, string(b))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tCOMPLETED\tQUESTIONS\tGOAL\tCHANNELS")
			for _, b := range briefs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					b.SessionID,
					b.CompletedAt.Format("2006-01-02 15:04"),
					b.QuestionCount,
					b.Goal,
					strings.Join(b.Channels, ", "))
			}
			return tw.Flush()
		},
	}
	list.Flags().IntP("limit", "l", 20, "Max results")
	list.Flags().Int("offset", 0, "Skip this many briefs")
	list.Flags().Bool("json", false, "Output JSON")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print one archived brief",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			repo, err := opts.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			b, err := repo.GetBrief(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get brief: %w", err)
			}
			if b == nil {
				return fmt.Errorf("no brief archived for %s", args[0])
			}

			out := cmd.OutOrStdout()
			switch format {
			case "markdown", "md":
				fmt.Fprintln(out, b.Summary)
			case "json":
				data, _ := json.MarshalIndent(b, "", "  ")
				fmt.Fprintln(out, string(data))
			default:
				return fmt.Errorf("unknown format %q: use json or markdown", format)
			}
			return nil
		},
	}
	show.Flags().StringP("format", "f", "markdown", "Output format: json or markdown")

	cmd.AddCommand(list, show)
	return cmd
}

// openStore opens the archive without wiring the rest of the engine.
func (o *options) openStore() (*store.SQLiteStore, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return repo, nil
}
