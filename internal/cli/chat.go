package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/campaign-consult/internal/consult"
	"github.com/ashureev/campaign-consult/internal/session"
)

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [request]",
		Short: "Run a consultation in the terminal",
		Long:  "Runs a consultation locally, asking each question on stdout and reading answers from stdin. The finished brief is archived like any other.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			core, err := opts.buildCore(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeCore(core)

			in := bufio.NewScanner(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			request := strings.TrimSpace(strings.Join(args, " "))
			if request == "" {
				fmt.Fprint(out, "What would you like to market? ")
				if !in.Scan() {
					return in.Err()
				}
				request = in.Text()
			}

			o, err := core.Service.Start(ctx, request, session.Client{Channel: "cli"})
			if err != nil {
				return err
			}
			id := o.SessionID

			for {
				printOutcome(out, o)
				if o.Stage.IsTerminal() {
					break
				}
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					_ = core.Service.Cancel(id)
					fmt.Fprintln(out)
					return in.Err()
				}
				if o, err = core.Service.Reply(ctx, id, in.Text(), ""); err != nil {
					return err
				}
			}

			md, err := core.Service.Summary(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, md)
			return nil
		},
	}
}

func printOutcome(w io.Writer, o *consult.Outcome) {
	if o.Notice != "" {
		fmt.Fprintf(w, "(%s)\n", o.Notice)
	}
	for _, e := range o.Errors {
		fmt.Fprintf(w, "! %s\n", e)
	}
	if o.NextQuestion != nil {
		fmt.Fprintf(w, "[%d%%] %s\n", o.ProgressPercentage, o.NextQuestion.Text)
		return
	}
	fmt.Fprintf(w, "[%d%%] consultation %s\n", o.ProgressPercentage, o.Stage)
}
