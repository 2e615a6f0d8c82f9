package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/quack-go/internal/app"
	"github.com/tphakala/quack-go/internal/settings"
)

// Command creates the settings command group. Changes are written to the
// datastore and picked up by a running engine on its next start.
func Command(rt *app.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored preferences",
	}

	cmd.AddCommand(
		getCommand(rt),
		setServerCommand(rt),
		boolCommand(rt, "set-scientific", "Show scientific names", func(ctx context.Context, s *settings.Store, v bool) error {
			return s.SetShowScientificNames(ctx, v)
		}),
		boolCommand(rt, "set-dark", "Use the dark theme", func(ctx context.Context, s *settings.Store, v bool) error {
			return s.SetDarkMode(ctx, v)
		}),
	)

	return cmd
}

// withStore opens the app without starting it. The server override is not
// applied so the stored values are shown and edited.
func withStore(cmd *cobra.Command, rt *app.Runtime, fn func(*settings.Store) error) error {
	a, err := app.New(cmd.Context(), rt.Settings)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.Settings())
}

func getCommand(rt *app.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print every preference as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rt, func(s *settings.Store) error {
				enc := json.NewEncoder(rt.Stdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s.Values())
			})
		},
	}
}

func setServerCommand(rt *app.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "set-server <url>",
		Short: "Set the server base address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.ValidateAddress(args[0]); err != nil {
				return err
			}
			return withStore(cmd, rt, func(s *settings.Store) error {
				if err := s.SetServerBaseURL(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(rt.Stdout(), "server set to %s\n", args[0])
				return err
			})
		},
	}
}

func boolCommand(rt *app.Runtime, use, short string, set func(context.Context, *settings.Store, bool) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <true|false>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", args[0])
			}
			return withStore(cmd, rt, func(s *settings.Store) error {
				return set(cmd.Context(), s, v)
			})
		},
	}
}
