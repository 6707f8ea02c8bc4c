package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Comcast/sage/kb"
	"github.com/Comcast/sage/tools"

	"github.com/spf13/cobra"
)

var (
	checkJSON  bool
	checkGraph string
	checkRuns  int

	docOut   string
	docGraph bool
	docCSS   []string
)

var checkCmd = &cobra.Command{
	Use:   "check [kb...]",
	Short: "Compile knowledge bases and explore their questions",
	Long: `Compiles the named knowledge bases (or all of them) and runs sessions
with every choice for every question, reporting the questions and
recommendations reached, text keys without text, and failures.

Exits with an error if any knowledge base fails.`,
	RunE: runCheck,
}

var docCmd = &cobra.Command{
	Use:   "doc [kb]",
	Short: "Write HTML documentation for a knowledge base",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDoc,
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "write the analysis as JSON")
	checkCmd.Flags().StringVar(&checkGraph, "graph", "", "write a graph instead of a report: dot or mermaid")
	checkCmd.Flags().IntVar(&checkRuns, "runs", tools.DefaultMaxRuns, "maximum sessions per knowledge base")

	docCmd.Flags().StringVarP(&docOut, "out", "o", "", "output file (default stdout)")
	docCmd.Flags().BoolVar(&docGraph, "graph", true, "include a graph of the questions")
	docCmd.Flags().StringSliceVar(&docCSS, "css", nil, "stylesheet URLs")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	lib, c, err := loadLibrary(ctx)
	if err != nil {
		return err
	}

	var kbs []*kb.Compiled
	switch {
	case 0 < len(args):
		for _, name := range args {
			c, err := lib.Get(name)
			if err != nil {
				return err
			}
			kbs = append(kbs, c)
		}
	case c != nil:
		kbs = append(kbs, c)
	default:
		for _, name := range lib.Names() {
			c, _ := lib.Get(name)
			kbs = append(kbs, c)
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, c := range kbs {
		r, err := resources(c)
		if err != nil {
			return err
		}
		a, err := tools.Analyze(ctx, c, r, &tools.Options{MaxRuns: checkRuns})
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		if 0 < len(a.Errors) {
			failed++
		}

		switch {
		case checkGraph == "dot":
			err = tools.Dot(a, out, r, "")
		case checkGraph == "mermaid":
			err = tools.Mermaid(a, out, r, nil)
		case checkGraph != "":
			return fmt.Errorf("unknown graph format %q", checkGraph)
		case checkJSON:
			js, _ := json.MarshalIndent(a, "", "  ")
			_, err = fmt.Fprintf(out, "%s\n", js)
		default:
			report(out, a)
		}
		if err != nil {
			return err
		}
	}

	if 0 < failed {
		return fmt.Errorf("%d knowledge base(s) failed", failed)
	}
	return nil
}

func report(w io.Writer, a *tools.Analysis) {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(w, format+"\n", args...)
	}
	status := "ok"
	if 0 < len(a.Errors) {
		status = "FAILED"
	}
	f("%s (%s): %s", a.KB, a.Engine, status)
	f("  start:           %s", a.Start)
	f("  runs:            %d", a.Runs)
	if a.Truncated {
		f("  truncated:       yes")
	}
	f("  questions:       %s", strings.Join(a.Questions, ", "))
	f("  recommendations: %s", strings.Join(a.Recommendations, ", "))
	f("  ends:            %d", len(a.Ends()))
	if 0 < len(a.MissingText) {
		f("  missing text:    %s", strings.Join(a.MissingText, ", "))
	}
	for _, e := range a.Errors {
		f("  error:           %s", e)
	}
}

func runDoc(cmd *cobra.Command, args []string) error {
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

	var a *tools.Analysis
	if docGraph {
		if a, err = tools.Analyze(ctx, c, r, nil); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if docOut != "" {
		f, err := os.Create(docOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return tools.RenderKBPage(c.KB, r, a, out, docCSS)
}
