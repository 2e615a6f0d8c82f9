package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tphakala/quack-go/internal/app"
	"github.com/tphakala/quack-go/internal/model"
)

// Command creates the command that runs one catalog refresh and prints it.
func Command(rt *app.Runtime) *cobra.Command {
	var asJSON bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the catalog once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := app.New(ctx, rt.Settings, rt.Options()...)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Start(ctx)
			catalog, err := a.WaitCatalog(ctx, 1)
			if err != nil {
				return fmt.Errorf("catalog refresh did not complete: %w", err)
			}

			if asJSON {
				return PrintJSON(rt.Stdout(), catalog)
			}
			return PrintTable(rt.Stdout(), catalog)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up when the refresh takes longer")

	return cmd
}

// PrintJSON writes the catalog as indented JSON.
func PrintJSON(w io.Writer, c model.Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// plainStyle renders without borders so the output stays greppable.
var plainStyle = table.Style{
	Box: table.BoxStyle{
		PaddingRight: "  ",
	},
	Options: table.Options{
		DrawBorder:      false,
		SeparateColumns: false,
		SeparateHeader:  false,
		SeparateRows:    false,
	},
}

// PrintTable writes one row per entity followed by a summary line.
func PrintTable(w io.Writer, c model.Catalog) error {
	t := table.NewWriter()
	t.SetStyle(plainStyle)
	t.AppendHeader(table.Row{"NAME", "SCIENTIFIC NAME", "REGIONS"})
	for _, e := range c.Entities {
		scientific := "-"
		if e.ScientificName != nil {
			scientific = *e.ScientificName
		}
		regions := make([]string, 0, len(e.Regions))
		for _, r := range e.Regions {
			regions = append(regions, string(r))
		}
		t.AppendRow(table.Row{e.Name, scientific, strings.Join(regions, ", ")})
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d ducks from %s\n", c.Len(), c.BaseURL)
	return err
}
