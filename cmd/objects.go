package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cadprobe/internal/scenario"
	"cadprobe/internal/store"
)

var (
	objectsAddBox bool
	objectsPick   bool
)

// Test seams for the interactive picker.
var (
	isInteractiveFunc = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	}
	pickObjectFunc = promptForObject
)

var objectsCmd = &cobra.Command{
	Use:   "objects",
	Short: "List the objects in the app's store",
	Long: `Open the app, optionally add a box through the menu, and print every
object the store holds. Use it to confirm which id a newly added box gets.`,
	Args: cobra.NoArgs,
	RunE: runObjects,
}

func runObjects(cmd *cobra.Command, args []string) error {
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

	bridge, err := store.New(sess, cfg.App.Hook)
	if err != nil {
		return err
	}
	if err := sess.Navigate(ctx, cfg.App.URL); err != nil {
		return err
	}
	if err := pause(ctx, cfg.Timing.AfterNavigate.Std()); err != nil {
		return err
	}
	if objectsAddBox {
		if err := sess.ClickByLabel(ctx, scenario.LabelToggleMenu); err != nil {
			return err
		}
		if err := pause(ctx, cfg.Timing.AfterMenu.Std()); err != nil {
			return err
		}
		if err := sess.ClickByLabel(ctx, scenario.LabelAddBox); err != nil {
			return err
		}
		if err := pause(ctx, cfg.Timing.AfterAdd.Std()); err != nil {
			return err
		}
	}

	objs, err := bridge.Objects(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(objs) == 0 {
		fmt.Fprintln(out, "No objects in the store.")
		return nil
	}
	printObjects(out, objs)
	if _, ok := store.Find(objs, cfg.App.ObjectID); !ok {
		logger.Warn().Int("object_id", cfg.App.ObjectID).Msg("configured object id is not in the store")
	}

	if !objectsPick {
		return nil
	}
	if !isInteractiveFunc() {
		logger.Warn().Msg("--pick requested but no interactive terminal available; skipping")
		return nil
	}
	picked, err := pickObjectFunc(objs)
	if err != nil {
		return err
	}
	pos, err := bridge.Position(ctx, picked.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Store position of %d: %s\n", picked.ID, scenario.FormatPosition(pos))
	return nil
}

func printObjects(w io.Writer, objs []store.Object) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tPOSITION\tROTATION\tSIZE")
	for _, o := range objs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.ID, o.Type, o.Position, o.Rotation, shapeSize(o))
	}
	tw.Flush()
}

func shapeSize(o store.Object) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	switch o.Type {
	case "Box":
		return fmt.Sprintf("l=%s w=%s h=%s", f(o.Length), f(o.Width), f(o.Height))
	case "Cylinder":
		return fmt.Sprintf("r=%s h=%s", f(o.Radius), f(o.Height))
	case "Sphere":
		return "r=" + f(o.Radius)
	default:
		return "-"
	}
}

func objectLabel(o store.Object) string {
	return fmt.Sprintf("%d %s at %s", o.ID, o.Type, o.Position)
}

func promptForObject(objs []store.Object) (store.Object, error) {
	labels := make([]string, 0, len(objs))
	byLabel := make(map[string]store.Object, len(objs))
	for _, o := range objs {
		l := objectLabel(o)
		labels = append(labels, l)
		byLabel[l] = o
	}

	var selection string
	prompt := &survey.Select{
		Message: "Select object",
		Options: labels,
		Default: labels[len(labels)-1],
	}
	if err := survey.AskOne(prompt, &selection); err != nil {
		return store.Object{}, err
	}
	o, ok := byLabel[selection]
	if !ok {
		return store.Object{}, fmt.Errorf("unknown object selection: %s", selection)
	}
	return o, nil
}

func init() {
	objectsCmd.Flags().BoolVar(&objectsAddBox, "add-box", false, "click Toggle Menu and Add Box before listing")
	objectsCmd.Flags().BoolVar(&objectsPick, "pick", false, "choose an object interactively and print its position")
	RootCmd.AddCommand(objectsCmd)
}
