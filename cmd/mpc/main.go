package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mpcasos/internal/app"
	"mpcasos/internal/audit"
	"mpcasos/internal/config"
	"mpcasos/internal/db"
	"mpcasos/internal/domain"
	"mpcasos/internal/logging"
	"mpcasos/internal/migrate"
	"mpcasos/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "mpc",
	Short: "Case assignment service",
	Long: `mpc serves and administers fiscal assignment for Ministerio Público cases.
- Workspace: a directory holding .mpcasos/ (SQLite stores), mpcasos.yml and logs/.
- Assign/reassign: every attempt runs the validated store procedure once; rejections
  are written to the failed-reassignment audit log before the caller sees them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("MPCASOS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to <workspace>/mpcasos.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(casoCmd())
	rootCmd.AddCommand(fiscalCmd())
	rootCmd.AddCommand(auditCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := resolveConfig(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			authCfg := server.AuthConfig{
				JWTSecret: os.Getenv("MPCASOS_JWT_SECRET"),
				Issuer:    os.Getenv("MPCASOS_JWT_ISSUER"),
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("MPCASOS_JWT_SECRET is required for bearer auth")
			}
			a, err := app.Open(cmd.Context(), workspace, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := server.New(server.Config{
				Assigner: a.Service,
				Cases:    a.Repo,
				BasePath: cfg.Server.BasePath,
				Auth:     authCfg,
				Logger:   logger,
				Gatherer: a.Registry,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.WithField("addr", cfg.Server.Addr).WithField("base_path", cfg.Server.BasePath).Info("http.serve")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				v, err := migrate.Version(a.DB)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"schema_version": v, "database": db.Path(a.Workspace, db.CasesDB)})
			})
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo fiscalías, fiscales and cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := a.Repo.SeedDemo(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default mpcasos.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	cfgCmd.AddCommand(initCmd)
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate mpcasos.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if path := viper.GetString("config"); path != "" {
				_, err = config.FromFile(path)
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfgCmd
}

func casoCmd() *cobra.Command {
	c := &cobra.Command{Use: "caso", Short: "Inspect and assign cases"}
	c.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a case with its assignment history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				caso, err := a.Repo.GetCaso(ctx, id)
				if err != nil {
					return err
				}
				hist, err := a.Repo.ListHistorial(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(server.CasoResponse{Caso: caso, Historial: hist})
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "estado <id> <estado>",
		Short: "Change the state of a case (ACTIVO, EN_INVESTIGACION, EN_PROCESO, CERRADO, ARCHIVADO)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			estado := strings.ToUpper(args[1])
			if !domain.ValidEstado(estado) {
				return fmt.Errorf("unknown estado %q", args[1])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Repo.SetEstadoCaso(ctx, id, estado); err != nil {
					return err
				}
				caso, err := a.Repo.GetCaso(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(caso)
			})
		},
	})
	c.AddCommand(assignmentCmd("asignar", "Assign a fiscal to a case", false))
	c.AddCommand(assignmentCmd("reasignar", "Reassign a case to another fiscal", true))
	return c
}

func assignmentCmd(use, short string, reassign bool) *cobra.Command {
	var requester int64
	cmd := &cobra.Command{
		Use:   use + " <caso-id> <fiscal-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := parseID(args[0])
			if err != nil {
				return err
			}
			fiscalID, err := parseID(args[1])
			if err != nil {
				return err
			}
			if requester <= 0 {
				return fmt.Errorf("--requester required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				call := a.Service.Assign
				if reassign {
					call = a.Service.Reassign
				}
				res, err := call(ctx, caseID, fiscalID, requester)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().Int64Var(&requester, "requester", 0, "requesting user id")
	return cmd
}

func fiscalCmd() *cobra.Command {
	f := &cobra.Command{Use: "fiscal", Short: "Fiscal catalog"}
	f.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active fiscales",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListFiscalesActivos(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Nombre", "Fiscalía"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.NombreCompleto(), it.NombreFiscalia})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	})
	f.AddCommand(fiscalActivoCmd("activar", "Mark a fiscal as active", true))
	f.AddCommand(fiscalActivoCmd("desactivar", "Mark a fiscal as inactive; it can no longer receive cases", false))
	return f
}

func fiscalActivoCmd(use, short string, activo bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Repo.SetFiscalActivo(ctx, id, activo); err != nil {
					return err
				}
				fiscal, err := a.Repo.GetFiscal(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(fiscal)
			})
		},
	}
}

func auditCmd() *cobra.Command {
	a := &cobra.Command{Use: "audit", Short: "Failed assignment audit log"}
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest rejected attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ap *app.App) error {
				var entries []audit.Entry
				var err error
				if ap.Table != nil {
					entries, err = ap.Table.Entries(ctx, n)
				} else {
					entries, err = audit.ReadFile(ap.Config.AuditPath(ap.Workspace))
					if n > 0 && len(entries) > n {
						entries = entries[len(entries)-n:]
					}
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Timestamp", "Op", "Caso", "Fiscal", "Usuario", "Motivo"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.Timestamp, e.Operation, e.CaseID, e.NewFiscalID, e.RequesterUserID, e.Reason})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of entries")
	a.AddCommand(tail)
	return a
}

// resolveConfig prefers --config over the workspace file.
func resolveConfig(workspace string) (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.FromFile(path)
	}
	return app.ResolveConfig(workspace)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := resolveConfig(workspace)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	a, err := app.Open(ctx, workspace, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
