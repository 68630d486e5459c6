package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Load recorded build files into the datastore",
		Long: `Load build records from JSON or YAML files. Each file holds one build
object or an array of them and is validated against the build schema. A build
with an already stored revision replaces it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			st, err := openStore(cfg, storePath)
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, st.Close()) }()

			imported, err := st.ImportFiles(cmd.Context(), args)

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d builds from %d files\n", imported, len(args))

			return err
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database path (overrides store.path)")

	return cmd
}
