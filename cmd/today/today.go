package today

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/quack-go/internal/app"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/model"
)

// Command creates the command that prints the duck of the day.
func Command(rt *app.Runtime) *cobra.Command {
	var refresh bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "today",
		Short: "Print the duck of the day",
		Long:  "Syncs the catalog, then keeps today's persisted pick or picks a new one. --refresh always picks a new one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := app.New(ctx, rt.Settings, rt.Options()...)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Start(ctx)
			if _, err := a.WaitCatalog(ctx, 1); err != nil {
				return fmt.Errorf("catalog refresh did not complete: %w", err)
			}

			var e *model.Entity
			if refresh {
				e, err = a.RefreshDaily(ctx)
			} else {
				e, err = a.ReconcileDaily(ctx)
			}
			if err != nil {
				// The pick stands even when it could not be saved
				logger.Global().Module("today").Warn("daily selection not persisted", logger.Error(err))
			}

			return Print(rt.Stdout(), e, a.Today(), a.Settings().ShowScientificNames())
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Pick a new duck even if one was picked today")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up when the refresh takes longer")

	return cmd
}

// Print writes the selection for day. A nil entity means the catalog is empty.
func Print(w io.Writer, e *model.Entity, day string, scientific bool) error {
	if e == nil {
		_, err := fmt.Fprintf(w, "%s: no ducks in the catalog\n", day)
		return err
	}

	if _, err := fmt.Fprintf(w, "Duck of the day %s: %s\n", day, e.Name); err != nil {
		return err
	}
	if scientific && e.ScientificName != nil {
		if _, err := fmt.Fprintf(w, "  %s\n", *e.ScientificName); err != nil {
			return err
		}
	}
	if e.ShortDescription != "" {
		if _, err := fmt.Fprintf(w, "\n%s\n", e.ShortDescription); err != nil {
			return err
		}
	}
	return nil
}
