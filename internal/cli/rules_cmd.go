package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/skyflag/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [matrix|vector]",
	Short: "List the rules available for each view shape",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shapes := []rules.Shape{rules.Matrix, rules.Vector}
		if len(args) == 1 {
			shape := rules.Shape(args[0])
			if shape != rules.Matrix && shape != rules.Vector {
				return fmt.Errorf("unknown shape %q (want matrix or vector)", args[0])
			}
			shapes = []rules.Shape{shape}
		}

		w := cmd.OutOrStdout()
		for i, shape := range shapes {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s rules:\n", shape)
			for _, name := range rules.Names(shape) {
				fmt.Fprintf(w, "  %s\n", name)
			}
		}
		return nil
	},
}
