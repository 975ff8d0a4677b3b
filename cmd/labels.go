package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cadprobe/internal/labels"
	"cadprobe/internal/scenario"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List the accessible labels on the app page",
	Long: `Open the app and list every element that carries an accessible label
(aria-label, aria-labelledby, <label> or title). The labels the reproduction
clicks are checked for exactly one match.`,
	Args: cobra.NoArgs,
	RunE: runLabels,
}

func runLabels(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sess, err := sessionOpener(cfg, logger)(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.OnConsole(scenario.PrintConsole(cmd.OutOrStdout()))
	defer sess.OnConsole(nil)

	if err := sess.Navigate(ctx, cfg.App.URL); err != nil {
		return err
	}
	if err := pause(ctx, cfg.Timing.AfterNavigate.Std()); err != nil {
		return err
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		return err
	}
	entries, err := labels.Parse(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse page html: %w", err)
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tSOURCE\tELEMENT")
	for _, e := range entries {
		el := e.Tag
		if e.ID != "" {
			el += "#" + e.ID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Label, e.Source, el)
	}
	tw.Flush()

	fmt.Fprintf(out, "\n%d labelled element(s), %d distinct label(s)\n", len(entries), len(labels.Distinct(entries)))
	for _, want := range []string{scenario.LabelToggleMenu, scenario.LabelAddBox} {
		n := labels.Count(entries, want)
		status := "ok"
		switch {
		case n == 0:
			status = "missing"
		case n > 1:
			status = "ambiguous"
		}
		fmt.Fprintf(out, "%-12s %d match(es): %s\n", want, n, status)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(labelsCmd)
}
