package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/quack-go/internal/app"
)

// Command creates the command that prints build information.
func Command(rt *app.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build date",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(rt.Stdout(), rt.Build.String())
			return err
		},
	}
}
