package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/quack-go/internal/app"
)

// Command creates the command that pushes the duck of the day to the
// configured notification services.
func Command(rt *app.Runtime) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send the duck of the day to the notification services",
		Long:  "Syncs the catalog and sends today's pick to every notify.urls service, even if it was sent before.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			opts := append(rt.Options(), app.WithManualAnnouncements())
			a, err := app.New(ctx, rt.Settings, opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Start(ctx)
			if _, err := a.WaitCatalog(ctx, 1); err != nil {
				return fmt.Errorf("catalog refresh did not complete: %w", err)
			}

			e, err := a.NotifyDaily(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(rt.Stdout(), "Sent %s for %s\n", e.Name, a.Today())
			return err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up when sync and delivery take longer")

	return cmd
}
