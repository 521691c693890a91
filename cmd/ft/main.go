package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fintrack/internal/app"
	"fintrack/internal/engine"
	"fintrack/internal/repo"
	"fintrack/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "ft",
	Short: "Fintrack CLI",
	Long: `Fintrack keeps recurring payments, expenses and incomes for one or more owners.
- Obligations: planned payments (once, weekly, biweekly, monthly, quarterly, yearly) with a due date.
- Pay records an expense dated today and moves the obligation to its next due date; skip only moves it.
- Reminders: due_tomorrow, monthly_3day, yearly_7day and overdue scans, run once with 'ft remind run'
  or on a schedule with 'ft remind daemon'.
- Ledger: expenses and incomes feed monthly balances with carry-over and expense reports.
- Workspace: the .fintrack directory holds the database; fintrack.yml holds settings ('ft config init').
- Event log: every change is recorded, view with 'ft log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logging.LevelFromEnv()
		if s := viper.GetString("log-level"); s != "" {
			level = logging.ParseLevel(s)
		}
		logging.SetupWith(logging.Options{JSON: viper.GetBool("log-json"), Level: &level})
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FINTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "cli", "actor recorded in the event log")
	rootCmd.PersistentFlags().Int64("owner", 0, "owner id (also FINTRACK_OWNER)")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON instead of colored text")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	for _, name := range []string{"workspace", "json", "actor-id", "owner", "log-json", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(obligationCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(expenseCmd())
	rootCmd.AddCommand(incomeCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(tokenCmd())
}

// --- helpers ---

func openWorkspace(required bool) (*app.Workspace, error) {
	return app.Open(app.Options{
		Workspace:      viper.GetString("workspace"),
		ConfigRequired: required,
		Logger:         slog.Default(),
	})
}

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	ws, err := openWorkspace(false)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

// withOwner is withWorkspace for commands scoped to one owner.
func withOwner(ctx context.Context, fn func(context.Context, engine.Engine, int64) error) error {
	owner, err := ownerID()
	if err != nil {
		return err
	}
	return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
		return fn(ctx, ws.Engine, owner)
	})
}

func ownerID() (int64, error) {
	owner := viper.GetInt64("owner")
	if owner <= 0 {
		return 0, errors.New("owner required: pass --owner or set FINTRACK_OWNER")
	}
	return owner, nil
}

func actorID() string {
	return viper.GetString("actor-id")
}

// explain turns engine errors into messages fit for a terminal.
func explain(err error, what, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%s %s not found", what, id)
	}
	var inv *engine.InvalidInputError
	if errors.As(err, &inv) {
		return fmt.Errorf("invalid %s: %s", inv.Field, inv.Reason)
	}
	return err
}

func isJSON() bool {
	return viper.GetBool("json")
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJSONOrTable prints v as JSON with --json and renders the table
// otherwise.
func printJSONOrTable(v any, render func(table.Writer)) error {
	if isJSON() {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	render(tw)
	tw.Render()
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalInt(cmd *cobra.Command, name string, v int) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
