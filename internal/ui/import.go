package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/ics"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

func (a *App) importCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file.ics>",
		Short: "Import events from an iCalendar file",
		Long: `Import every event of an iCalendar (.ics) file as ChronoFlow items.

Events that cannot be converted, for example ones without a title or
with an unsupported recurrence rule, are skipped and reported.

Example:
  chronoflow import ~/Downloads/calendar.ics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureStore(); err != nil {
				return err
			}

			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening calendar: %w", err)
			}
			defer func() { _ = f.Close() }()

			count, skipped, err := importCalendar(context.Background(), a.store, f, a.user, a.config.Location(), dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range skipped {
				fmt.Fprintln(out, formatMuted("skipped: "+s))
			}
			verb := "Imported"
			if dryRun {
				verb = "Would import"
			}
			fmt.Fprintf(out, "%s %d items from %s\n", verb, count, path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without saving")
	return cmd
}

// importCalendar saves the events of r and returns how many were
// imported and a description of each skipped event.
func importCalendar(ctx context.Context, dest schedule.Repository, r io.Reader, userID string, loc *time.Location, dryRun bool) (int, []string, error) {
	items, parseErr := ics.Import(r, userID, loc)
	if items == nil && parseErr != nil {
		return 0, nil, parseErr
	}

	var skipped []string
	if parseErr != nil {
		skipped = append(skipped, strings.Split(parseErr.Error(), "\n")...)
	}

	imported := 0
	for _, it := range items {
		if err := recur.Validate(it.Recurrence); err != nil {
			skipped = append(skipped, fmt.Sprintf("%q: %v", it.Title, err))
			continue
		}
		it.Source = schedule.SourceCLI
		if !dryRun {
			if err := dest.CreateItem(ctx, it); err != nil {
				return imported, skipped, fmt.Errorf("importing %q: %w", it.Title, err)
			}
		}
		imported++
	}
	return imported, skipped, nil
}

func resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	return absPath, nil
}
