package main

import (
	"time"

	"github.com/Comcast/sage/sio"
	"github.com/Comcast/sage/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	askStyle string
	askWidth int

	consoleState      string
	consoleEcho       bool
	consoleTags       bool
	consoleTimestamps bool
)

var askCmd = &cobra.Command{
	Use:   "ask [kb]",
	Short: "Run a consultation in a terminal UI",
	Long: `Runs a consultation with the named knowledge base (or the --kb file,
or the configured default) in a full-screen terminal UI.

Arrow keys move, space toggles an option of a multi-select question,
enter submits, r starts over, and q quits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

var runCmd = &cobra.Command{
	Use:   "run [kb]",
	Short: "Run a consultation on stdin and stdout",
	Long: `Runs a consultation line by line.  Answer with an option number
(or numbers like 1,3 for multi-select questions).  Type r to start over,
q to quit, and facts to see working memory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConsole,
}

func init() {
	askCmd.Flags().StringVar(&askStyle, "style", "", "glamour style for recommendations (dark, light, notty, ...)")
	askCmd.Flags().IntVar(&askWidth, "width", 80, "word wrap width")

	runCmd.Flags().StringVar(&consoleState, "state", "", "write working memory as JSON to this file after every cycle")
	runCmd.Flags().BoolVar(&consoleEcho, "echo", false, "echo input")
	runCmd.Flags().BoolVar(&consoleTags, "tags", false, "tag output lines")
	runCmd.Flags().BoolVar(&consoleTimestamps, "ts", false, "print timestamps")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := pickKB(ctx, args)
	if err != nil {
		return err
	}
	r, err := resources(c)
	if err != nil {
		return err
	}
	sess, err := c.NewSession(ctx)
	if err != nil {
		return err
	}
	sess.Logger = logger

	started := time.Now()
	o, err := tui.Run(ctx, sess, r, tui.Options{Style: askStyle, Width: askWidth},
		tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
	record(ctx, c.Name, started, o)
	return err
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := pickKB(ctx, args)
	if err != nil {
		return err
	}
	r, err := resources(c)
	if err != nil {
		return err
	}
	sess, err := c.NewSession(ctx)
	if err != nil {
		return err
	}
	sess.Logger = logger

	io := sio.NewStdio(r)
	io.In = cmd.InOrStdin()
	io.Out = cmd.OutOrStdout()
	io.EchoInput = consoleEcho
	io.Tags = consoleTags
	io.PadTags = consoleTags
	io.Timestamps = consoleTimestamps
	io.StateOutputFilename = consoleState
	io.Logger = logger

	started := time.Now()
	o, err := io.Run(ctx, sess)
	record(ctx, c.Name, started, o)
	return err
}
