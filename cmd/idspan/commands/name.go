package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/idspan/pkg/namemgr"
)

func newNameCommand() *cobra.Command {
	var (
		prefix  string
		suffix  string
		fromDir string
		count   int
	)

	cmd := &cobra.Command{
		Use:   "name [TAKEN ...]",
		Short: "Generate names <prefix><n><suffix> that do not collide",
		Long: `Generate names of the form <prefix><n><suffix> using the smallest numbers
not taken. Taken names come from the arguments and, with --from-dir, from the
entries of a directory. Names of another form are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("%w: %d", ErrInvalidCount, count)
			}

			taken := args

			if fromDir != "" {
				entries, err := os.ReadDir(fromDir)
				if err != nil {
					return fmt.Errorf("read directory: %w", err)
				}

				for _, entry := range entries {
					taken = append(taken, entry.Name())
				}
			}

			mgr := namemgr.New(prefix, suffix)

			for _, name := range taken {
				// Duplicates are harmless here.
				if mgr.Registered(name) {
					continue
				}

				_, err := mgr.Add(name)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()

			for range count {
				name, err := mgr.NewName(true)
				if err != nil {
					return err
				}

				fmt.Fprintln(out, name)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Name prefix")
	cmd.Flags().StringVar(&suffix, "suffix", "", "Name suffix")
	cmd.Flags().StringVar(&fromDir, "from-dir", "", "Treat the entries of this directory as taken")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of names to generate")

	return cmd
}
