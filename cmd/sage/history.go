package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Comcast/sage/core"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [kb]",
	Short: "List finished consultations",
	Long: `Lists the consultations with the named knowledge base (or the
configured default) that were recorded in the configured history
storage, oldest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum records (0 means all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "write records as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.Storage.Kind == "" || cfg.Storage.Kind == "none" {
		return errors.New("no history storage configured (see storage.kind)")
	}

	name := cfg.KB.Default
	if 0 < len(args) {
		name = args[0]
	}

	ctx := context.Background()
	st, err := openStorage()
	if err != nil {
		return err
	}
	if err = st.Open(ctx); err != nil {
		return err
	}
	defer st.Close(ctx)

	rs, err := st.List(ctx, name, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		js, err := json.MarshalIndent(rs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", js)
		return nil
	}

	for _, r := range rs {
		fmt.Fprintf(out, "%s %s %s -> %s\n",
			r.ID,
			r.Finished.Local().Format(time.DateTime),
			answers(r.Answers),
			recs(r.Recommendations))
	}
	return nil
}

func answers(as []core.Answer) string {
	acc := make([]string, len(as))
	for i, a := range as {
		acc[i] = a.QuestionID + "=" + strings.Join(a.Selected, ",")
	}
	return strings.Join(acc, " ")
}

func recs(rs []core.Recommendation) string {
	if len(rs) == 0 {
		return "(none)"
	}
	acc := make([]string, len(rs))
	for i, r := range rs {
		acc[i] = r.SystemKey
	}
	return strings.Join(acc, ",")
}
