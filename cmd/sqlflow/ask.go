package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question against the active database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, st, err := newPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := p.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if showSQL && result.SQL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "SQL:", result.SQL)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSQL, "show-sql", false, "print the generated SQL before the answer")
	return cmd
}
