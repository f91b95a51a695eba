package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencaretools/abctrack/internal/adapters/db/gormstore"
	httpadapter "github.com/opencaretools/abctrack/internal/adapters/http"
	rpcadapter "github.com/opencaretools/abctrack/internal/adapters/rpcjson"
	"github.com/opencaretools/abctrack/internal/application"
	"github.com/opencaretools/abctrack/internal/config"
	"github.com/opencaretools/abctrack/internal/domain"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "abctrack",
		Usage: "Behavior incident tracking server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			configureCommand(),
			childCommand(),
			catalogCommand(),
			incidentCommand(),
			reportCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServer(ctx, cfg)
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP and JSON-RPC server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "driver", Usage: "storage backend: sqlite or postgres"},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "dsn", Usage: "PostgreSQL connection string"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.Addr = c.String("addr")
			}
			if c.IsSet("rpc-socket") {
				cfg.RPCSocket = c.String("rpc-socket")
			}
			if c.IsSet("driver") {
				cfg.Driver = c.String("driver")
			}
			if c.IsSet("db-path") {
				cfg.DBPath = c.String("db-path")
			}
			if c.IsSet("dsn") {
				cfg.DSN = c.String("dsn")
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case gormstore.DriverSQLite:
		db, err = gormstore.OpenSQLite(cfg.DBPath)
	case gormstore.DriverPostgres:
		db, err = gormstore.OpenPostgres(cfg.DSN)
	default:
		return fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return err
	}
	if err := gormstore.RunMigrations(ctx, db, cfg.Driver); err != nil {
		return err
	}

	service := application.NewTrackerService(gormstore.New(db))
	router := httpadapter.NewRouter(service, log.Default())
	srv := &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(cfg.RPCSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Printf("json-rpc listening on unix://%s", cfg.RPCSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s (driver=%s)", srv.Addr, cfg.Driver)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func configureCommand() *cli.Command {
	return &cli.Command{
		Name:  "configure",
		Usage: "Store CLI transport settings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Value: "uds", Usage: "uds or http"},
			&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
			&cli.StringFlag{Name: "socket", Value: "/tmp/abctrack.sock"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
			if err := saveCLIConfig(cfg); err != nil {
				return err
			}
			fmt.Printf("using %s transport\n", cfg.Transport)
			return nil
		},
	}
}

func childCommand() *cli.Command {
	return &cli.Command{
		Name:  "child",
		Usage: "Manage children",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List children",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					var out []domain.Child
					if err := doChildrenList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printChildren(out)
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "Add a child",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "dob", Usage: "date of birth, RFC 3339"},
					&cli.StringFlag{Name: "avatar-url"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					var out domain.Child
					if err := doChildrenCreate(ctx, cfg, c.String("name"), c.String("dob"), c.String("avatar-url"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printChildren([]domain.Child{out})
					return nil
				},
			},
			{
				Name:  "remove",
				Usage: "Remove a child (refused while incidents reference it)",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					if err := doChildrenDelete(ctx, cfg, c.String("id"), nil); err != nil {
						return err
					}
					fmt.Println("removed")
					return nil
				},
			},
		},
	}
}

func catalogCommand() *cli.Command {
	typeFlag := &cli.StringFlag{
		Name:     "type",
		Required: true,
		Usage:    "behaviors, antecedents, consequences, interventions or locations",
	}
	return &cli.Command{
		Name:  "catalog",
		Usage: "Manage catalog items",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List catalog items of one type",
				Flags: []cli.Flag{typeFlag, &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					var out []domain.CatalogItem
					if err := doCatalogList(ctx, cfg, c.String("type"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printCatalogItems(out)
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "Add a catalog item",
				Flags: []cli.Flag{
					typeFlag,
					&cli.StringFlag{Name: "label", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					var out domain.CatalogItem
					if err := doCatalogCreate(ctx, cfg, c.String("type"), c.String("label"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printCatalogItems([]domain.CatalogItem{out})
					return nil
				},
			},
			{
				Name:  "remove",
				Usage: "Remove a catalog item and clear incident references to it",
				Flags: []cli.Flag{typeFlag, &cli.StringFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					if err := doCatalogDelete(ctx, cfg, c.String("type"), c.String("id"), nil); err != nil {
						return err
					}
					fmt.Println("removed")
					return nil
				},
			},
		},
	}
}

func incidentCommand() *cli.Command {
	return &cli.Command{
		Name:  "incident",
		Usage: "Log and review incidents",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List incidents, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "child"},
					&cli.StringFlag{Name: "from", Usage: "RFC 3339 lower bound"},
					&cli.StringFlag{Name: "to", Usage: "RFC 3339 upper bound, exclusive"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					var out []domain.ExpandedIncident
					if err := doIncidentsList(ctx, cfg, c.String("child"), c.String("from"), c.String("to"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printIncidents(out)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Show one incident with catalog items resolved",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					var out domain.ExpandedIncident
					if err := doIncidentsGet(ctx, cfg, c.String("id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printIncident(out)
					return nil
				},
			},
			{
				Name:  "log",
				Usage: "Log a new incident",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "child", Required: true, Usage: "child id"},
					&cli.StringFlag{Name: "time", Usage: "RFC 3339, defaults to now"},
					&cli.IntFlag{Name: "intensity", Value: 3, Usage: "1 to 5"},
					&cli.StringSliceFlag{Name: "behavior", Usage: "behavior catalog id, repeatable"},
					&cli.StringSliceFlag{Name: "antecedent", Usage: "antecedent catalog id, repeatable"},
					&cli.StringSliceFlag{Name: "consequence", Usage: "consequence catalog id, repeatable"},
					&cli.StringSliceFlag{Name: "intervention", Usage: "intervention catalog id, repeatable"},
					&cli.StringFlag{Name: "behavior-text"},
					&cli.StringFlag{Name: "location", Usage: "location catalog id"},
					&cli.StringFlag{Name: "location-text"},
					&cli.StringFlag{Name: "function", Usage: "escape, attention, tangible, sensory or unknown"},
					&cli.IntFlag{Name: "duration", Usage: "seconds"},
					&cli.IntFlag{Name: "latency", Usage: "seconds"},
					&cli.StringSliceFlag{Name: "tag", Usage: "free-form tag, repeatable"},
					&cli.StringFlag{Name: "notes"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					payload := map[string]any{
						"childId":         c.String("child"),
						"intensity":       c.Int("intensity"),
						"behaviorIds":     c.StringSlice("behavior"),
						"antecedentIds":   c.StringSlice("antecedent"),
						"consequenceIds":  c.StringSlice("consequence"),
						"interventionIds": c.StringSlice("intervention"),
					}
					if v := c.String("time"); v != "" {
						payload["timestamp"] = v
					} else {
						payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
					}
					if v := c.String("behavior-text"); v != "" {
						payload["behaviorText"] = v
					}
					if v := c.String("location"); v != "" {
						payload["locationId"] = v
					}
					if v := c.String("location-text"); v != "" {
						payload["locationText"] = v
					}
					if v := c.String("function"); v != "" {
						payload["functionHypothesis"] = v
					}
					if c.IsSet("duration") {
						payload["durationSec"] = c.Int("duration")
					}
					if c.IsSet("latency") {
						payload["latencySec"] = c.Int("latency")
					}
					if tags := c.StringSlice("tag"); len(tags) > 0 {
						payload["tags"] = tags
					}
					if v := c.String("notes"); v != "" {
						payload["notes"] = v
					}
					var out domain.ExpandedIncident
					if err := doIncidentsCreate(ctx, cfg, payload, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printIncident(out)
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Update incident fields; link id lists replace the stored set",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "time"},
					&cli.IntFlag{Name: "intensity"},
					&cli.StringSliceFlag{Name: "behavior"},
					&cli.StringSliceFlag{Name: "antecedent"},
					&cli.StringSliceFlag{Name: "consequence"},
					&cli.StringSliceFlag{Name: "intervention"},
					&cli.StringFlag{Name: "location", Usage: "location catalog id, empty string clears"},
					&cli.StringFlag{Name: "function"},
					&cli.StringSliceFlag{Name: "tag"},
					&cli.StringFlag{Name: "notes"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					patch := map[string]any{}
					if c.IsSet("time") {
						patch["timestamp"] = c.String("time")
					}
					if c.IsSet("intensity") {
						patch["intensity"] = c.Int("intensity")
					}
					if c.IsSet("behavior") {
						patch["behaviorIds"] = c.StringSlice("behavior")
					}
					if c.IsSet("antecedent") {
						patch["antecedentIds"] = c.StringSlice("antecedent")
					}
					if c.IsSet("consequence") {
						patch["consequenceIds"] = c.StringSlice("consequence")
					}
					if c.IsSet("intervention") {
						patch["interventionIds"] = c.StringSlice("intervention")
					}
					if c.IsSet("location") {
						patch["locationId"] = c.String("location")
					}
					if c.IsSet("function") {
						patch["functionHypothesis"] = c.String("function")
					}
					if c.IsSet("tag") {
						patch["tags"] = c.StringSlice("tag")
					}
					if c.IsSet("notes") {
						patch["notes"] = c.String("notes")
					}
					var out domain.ExpandedIncident
					if err := doIncidentsUpdate(ctx, cfg, c.String("id"), patch, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printIncident(out)
					return nil
				},
			},
			{
				Name:  "remove",
				Usage: "Remove an incident",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					if err := doIncidentsDelete(ctx, cfg, c.String("id"), nil); err != nil {
						return err
					}
					fmt.Println("removed")
					return nil
				},
			},
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Aggregate reports",
		Commands: []*cli.Command{
			{
				Name:  "summary",
				Usage: "Incident counts by hour, intensity, function and day",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "child"},
					&cli.StringFlag{Name: "from", Usage: "RFC 3339 lower bound"},
					&cli.StringFlag{Name: "to", Usage: "RFC 3339 upper bound, exclusive"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadCLIConfig()
					if err != nil {
						return err
					}
					var out domain.ReportSummary
					if err := doReportSummary(ctx, cfg, c.String("child"), c.String("from"), c.String("to"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printSummary(out)
					return nil
				},
			},
		},
	}
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
