package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"fintrack/internal/app"
	"fintrack/internal/config"
	"fintrack/internal/domain"
	"fintrack/internal/engine"
	"fintrack/internal/engine/auth"
	"fintrack/internal/notify"
	"fintrack/internal/scheduler"
	"fintrack/internal/server"
)

const jwtSecretEnv = "FINTRACK_JWT_SECRET"

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "remind", Short: "Scan and deliver reminders"}
	cmd.AddCommand(remindScanCmd())
	cmd.AddCommand(remindRunCmd())
	cmd.AddCommand(remindDaemonCmd())
	cmd.AddCommand(remindSummaryCmd())
	return cmd
}

func parseClasses(arg string) ([]domain.ReminderClass, error) {
	if arg == "all" {
		return domain.ReminderClasses, nil
	}
	class, err := domain.ParseReminderClass(arg)
	if err != nil {
		return nil, err
	}
	return []domain.ReminderClass{class}, nil
}

func remindScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <class>",
		Short: "Show reminders that are due, without delivering or marking them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := domain.ParseReminderClass(args[0])
			if err != nil {
				return err
			}
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				reminders, err := e.Scan(ctx, class, &owner)
				if err != nil {
					return err
				}
				return printJSONOrTable(reminders, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Obligation", "Due", "Amount", "Description", "Days"})
					for _, r := range reminders {
						days := r.DaysUntil
						if class == domain.ReminderOverdue {
							days = -r.DaysOverdue
						}
						tw.AppendRow(table.Row{r.ObligationID, formatDate(r.DueDate), r.Amount.String(), r.Description, days})
					}
				})
			})
		},
	}
}

func remindRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <class|all>",
		Short: "Deliver one reminder class to the configured notifiers for every owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classes, err := parseClasses(args[0])
			if err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				n, err := ws.Notifier()
				if err != nil {
					return err
				}
				reports := make([]engine.DispatchReport, 0, len(classes))
				for _, class := range classes {
					rep, err := ws.Engine.Dispatch(ctx, class, n)
					if err != nil {
						return err
					}
					reports = append(reports, rep)
				}
				return printJSONOrTable(reports, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Class", "Selected", "Delivered", "Failed"})
					for _, r := range reports {
						tw.AppendRow(table.Row{r.Class, r.Selected, r.Delivered, r.Failed})
					}
				})
			})
		},
	}
}

func remindSummaryCmd() *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show today's expense summary, or send every owner's with --send",
		RunE: func(cmd *cobra.Command, args []string) error {
			if send {
				return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
					n, err := ws.Notifier()
					if err != nil {
						return err
					}
					rep, err := ws.Engine.SendDailySummaries(ctx, n)
					if err != nil {
						return err
					}
					return printJSONOrTable(rep, func(tw table.Writer) {
						tw.AppendHeader(table.Row{"Date", "Owners", "Delivered", "Failed"})
						tw.AppendRow(table.Row{formatDate(rep.Date), rep.Owners, rep.Delivered, rep.Failed})
					})
				})
			}
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				s, err := e.DailySummary(ctx, owner)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(s)
				}
				fmt.Println(notify.SummaryMessage(s))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "deliver summaries to the configured notifiers")
	return cmd
}

func remindDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Deliver reminders on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				sched, err := newScheduler(ws)
				if err != nil {
					return err
				}
				return sched.Run(ctx)
			})
		},
	}
}

func newScheduler(ws *app.Workspace) (*scheduler.Scheduler, error) {
	n, err := ws.Notifier()
	if err != nil {
		return nil, err
	}
	s := scheduler.New(ws.Engine, n, ws.Config, ws.Logger)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin, remind bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv(jwtSecretEnv)
			if secret == "" {
				return fmt.Errorf("%s is required for bearer auth", jwtSecretEnv)
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if !cmd.Flags().Changed("addr") && ws.Config.Server.Addr != "" {
					addr = ws.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && ws.Config.Server.BasePath != "" {
					basePath = ws.Config.Server.BasePath
				}
				m := ws.EnableMetrics()
				handler, err := server.New(server.Config{
					Engine:   ws.Engine,
					BasePath: basePath,
					Auth:     server.AuthConfig{Service: ws.Auth(secret), AllowDevLogin: devLogin, Logger: ws.Logger},
					Metrics:  m,
					Logger:   ws.Logger,
				})
				if err != nil {
					return err
				}
				if remind {
					sched, err := newScheduler(ws)
					if err != nil {
						return err
					}
					go func() {
						if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
							ws.Logger.Error("reminder scheduler stopped", "error", err)
						}
					}()
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				ws.Logger.Info("serving fintrack API", "addr", addr, "base_path", basePath, "dev_login", devLogin, "reminders", remind)
				fmt.Printf("Serving Fintrack API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)\n", addr, basePath, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login, which signs tokens for any owner")
	cmd.Flags().BoolVar(&remind, "remind", false, "run the reminder scheduler in the same process")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default fintrack.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner *int64
			if id := viper.GetInt64("owner"); id > 0 {
				owner = &id
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				events, err := ws.Engine.Repo.LatestEvents(ctx, n, owner, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"})
					for _, ev := range events {
						tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + " " + ev.EntityID, ev.Actor, ev.Payload})
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP API"}
	cmd.AddCommand(apiKeyCreateCmd())
	cmd.AddCommand(apiKeyListCmd())
	cmd.AddCommand(apiKeyRevokeCmd())
	return cmd
}

func withAuth(ctx context.Context, fn func(context.Context, auth.Service, int64) error) error {
	owner, err := ownerID()
	if err != nil {
		return err
	}
	return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
		return fn(ctx, ws.Auth(os.Getenv(jwtSecretEnv)), owner)
	})
}

func apiKeyCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create a key; the plaintext is shown once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return withAuth(cmd.Context(), func(ctx context.Context, svc auth.Service, owner int64) error {
				key, raw, err := svc.CreateAPIKey(ctx, owner, name)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(map[string]any{"id": key.ID, "owner_id": key.OwnerID, "name": key.Name, "key": raw, "created_at": key.CreatedAt})
				}
				fmt.Printf("id:  %s\nkey: %s\n", key.ID, raw)
				fmt.Println("Store the key now; only its hash is kept.")
				return nil
			})
		},
	}
}

func apiKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keys of the owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(cmd.Context(), func(ctx context.Context, svc auth.Service, owner int64) error {
				keys, err := svc.ListAPIKeys(ctx, owner)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Name", "Created"})
					for _, k := range keys {
						tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
					}
				})
			})
		},
	}
}

func apiKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(cmd.Context(), func(ctx context.Context, svc auth.Service, owner int64) error {
				keys, err := svc.ListAPIKeys(ctx, owner)
				if err != nil {
					return err
				}
				for _, k := range keys {
					if k.ID == args[0] {
						if err := svc.RevokeAPIKey(ctx, k.ID); err != nil {
							return err
						}
						fmt.Println("revoked", k.ID)
						return nil
					}
				}
				return fmt.Errorf("api key %s not found", args[0])
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for the owner (development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerID()
			if err != nil {
				return err
			}
			secret := os.Getenv(jwtSecretEnv)
			if secret == "" {
				return fmt.Errorf("%s is required to sign tokens", jwtSecretEnv)
			}
			token, err := auth.Service{Secret: secret}.SignToken(owner, ttl)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(map[string]any{"access_token": token, "token_type": "Bearer", "expires_in": int(ttl.Seconds())})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
