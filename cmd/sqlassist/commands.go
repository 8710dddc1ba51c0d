package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-sql-assistant/internal/intent"
	"github.com/tbourn/go-sql-assistant/internal/lang"
	"github.com/tbourn/go-sql-assistant/internal/llm"
	"github.com/tbourn/go-sql-assistant/internal/sqlguard"
)

// Exit codes.
const (
	exitOK       = 0
	exitRejected = 1
	exitError    = 2
)

// errRejected marks a statement that failed validation; it maps to
// exitRejected rather than exitError.
var errRejected = errors.New("rejected")

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRejected):
		return exitRejected
	default:
		return exitError
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sqlassist",
		Short:         "Offline tools for the SQL assistant's routing and SQL guard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newCleanCmd(), newClassifyCmd(), newExamplesCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var (
		maxLimit  int64
		factTable string
		repair    bool
	)
	cmd := &cobra.Command{
		Use:   "validate [SQL]",
		Short: "Clean and validate a statement; reads stdin when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := input(cmd, args)
			if err != nil {
				return err
			}
			v := sqlguard.New(maxLimit, factTable)
			sql := sqlguard.Clean(raw)
			verr := v.Validate(sql)
			if verr != nil && repair {
				if fixed, ok := sqlguard.Repair(raw); ok {
					sql, verr = fixed, v.Validate(fixed)
				}
			}

			out := cmd.OutOrStdout()
			if verr != nil {
				fmt.Fprintf(out, "REJECTED %s: %v\n", sqlguard.KindOf(verr), verr)
				return fmt.Errorf("%w: %s", errRejected, sqlguard.KindOf(verr))
			}
			if sqlguard.IsRefusal(sql) {
				fmt.Fprintln(out, "OK (refusal)")
			} else {
				fmt.Fprintln(out, "OK")
			}
			fmt.Fprintln(out, sql)
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxLimit, "max-limit", sqlguard.DefaultMaxLimit, "largest LIMIT accepted")
	cmd.Flags().StringVar(&factTable, "fact-table", sqlguard.DefaultFactTable, "table that must not be scanned without LIMIT or aggregate")
	cmd.Flags().BoolVar(&repair, "repair", false, "re-slice from the first SELECT once when validation fails")
	return cmd
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [TEXT]",
		Short: "Strip fences and notes from model output and terminate it with one semicolon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := input(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sqlguard.Clean(raw))
			return nil
		},
	}
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify QUESTION",
		Short: "Show how a question would be routed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.Join(args, " ")
			d := intent.Default().Explain(q)
			route := "chat"
			if d.Database {
				route = "sql"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "route:    %s\n", route)
			fmt.Fprintf(out, "reason:   %s\n", d.Reason)
			fmt.Fprintf(out, "score:    %d\n", d.Score)
			fmt.Fprintf(out, "strong:   %t\n", d.Strong)
			fmt.Fprintf(out, "language: %s\n", lang.Detect(d.Question))
			return nil
		},
	}
}

func newExamplesCmd() *cobra.Command {
	var (
		file string
		k    int
	)
	cmd := &cobra.Command{
		Use:   "examples QUESTION",
		Short: "List the few-shot examples that would be sent with a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			examples := llm.DefaultExamples
			if file != "" {
				loaded, err := llm.LoadExamples(file)
				if err != nil {
					return err
				}
				examples = loaded
			}
			set := llm.NewExampleSet(examples)
			out := cmd.OutOrStdout()
			for i, ex := range set.Relevant(strings.Join(args, " "), k) {
				fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, ex.Question, ex.SQL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Markdown table of examples (defaults to the built-in set)")
	cmd.Flags().IntVarP(&k, "count", "n", 3, "number of examples")
	return cmd
}

// input returns the single argument, or stdin when there is none or it is "-".
func input(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", errors.New("no input")
	}
	return string(b), nil
}
