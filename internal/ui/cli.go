package ui

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/config"
	"github.com/chronoflow/chronoflow/internal/db"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

// LocalUser owns items created from the command line unless --user is given.
const LocalUser = "local"

// App holds the CLI application state.
type App struct {
	store   schedule.Store
	config  *config.Config
	root    *cobra.Command
	user    string
	noColor bool
	now     func() time.Time
}

// NewApp creates a new CLI application. store may be nil; it is opened
// from the config on first use.
func NewApp(store schedule.Store, cfg *config.Config) *App {
	a := &App{store: store, config: cfg, now: time.Now}

	a.root = &cobra.Command{
		Use:   "chronoflow",
		Short: "A calendar and task planner with a Telegram bot and AI assistant",
		Long: `ChronoFlow keeps events and tasks on one calendar.

Run 'chronoflow serve' to start the web API, the Telegram bot and
reminders. The other commands work directly against the local store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if a.noColor {
				DisableColor()
			}
		},
	}

	a.root.PersistentFlags().StringVar(&a.user, "user", LocalUser, "User ID the command acts for")
	a.root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable color output")

	a.root.AddCommand(a.versionCmd())
	a.root.AddCommand(a.configCmd())
	a.root.AddCommand(a.serveCmd())
	a.root.AddCommand(a.addCmd())
	a.root.AddCommand(a.listCmd())
	a.root.AddCommand(a.showCmd())
	a.root.AddCommand(a.doneCmd())
	a.root.AddCommand(a.deleteCmd())
	a.root.AddCommand(a.moveCmd())
	a.root.AddCommand(a.askCmd())
	a.root.AddCommand(a.exportCmd())
	a.root.AddCommand(a.importCmd())

	return a
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chronoflow %s (commit: %s)\n", Version, Commit)
		},
	}
}

// ensureStore opens the configured store if none was injected.
func (a *App) ensureStore() error {
	if a.store != nil {
		return nil
	}
	store, err := db.Open(db.Options{
		Driver: a.config.Storage.Driver,
		Path:   a.config.Storage.DBPath,
		DSN:    a.config.Storage.DSN,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	a.store = store
	return nil
}

// today returns the current calendar day in the configured timezone.
func (a *App) today() time.Time {
	t := a.now().In(a.config.Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SetArgs overrides os.Args for the next Execute.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.root.Execute()
}

// Close releases the store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
