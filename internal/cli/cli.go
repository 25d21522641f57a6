// Package cli implements the pgapp operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pscheid92/pgapp/internal/adapter/postgres"
	"github.com/pscheid92/pgapp/internal/app"
	"github.com/pscheid92/pgapp/internal/platform/config"
	"github.com/pscheid92/pgapp/internal/platform/logging"
	"github.com/pscheid92/pgapp/internal/platform/version"
)

// CLI is the root command configuration with subcommands.
type CLI struct {
	LogLevel string           `kong:"short='l',help='Log level',enum='debug,info,warn,error',default='info'"`
	URL      URLCmd           `kong:"cmd,name='url',help='Print the database connection URI'"`
	Check    CheckCmd         `kong:"cmd,help='Connect to the database and ping it'"`
	Migrate  MigrateCmd       `kong:"cmd,help='Apply tern migrations from a directory'"`
	Version  kong.VersionFlag `kong:"short='v',help='Show version and exit.'"`
}

type URLCmd struct {
	ShowPassword bool `kong:"name='show-password',help='Print the password in clear text'"`
}

func (c *URLCmd) Run(cli *CLI, out io.Writer) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	uri := cfg.RedactedDatabaseURL()
	if c.ShowPassword {
		uri = cfg.DatabaseURL()
	}
	_, err = fmt.Fprintln(out, uri)
	return err
}

type CheckCmd struct {
	Timeout time.Duration `kong:"default='10s',help='Give up after this long'"`
}

func (c *CheckCmd) Run(cli *CLI, out io.Writer) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	pool, err := postgres.ConnectWithRetry(ctx, cfg.DatabaseURL(), app.ConnectPolicy(cfg), app.PoolOptions(cfg, nil)...)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, err = fmt.Fprintf(out, "ok: %s\n", cfg.RedactedDatabaseURL())
	return err
}

type MigrateCmd struct {
	Dir     string        `kong:"arg,type='existingdir',help='Directory holding NNN_name.sql migrations'"`
	Timeout time.Duration `kong:"default='5m',help='Give up after this long'"`
}

func (c *MigrateCmd) Run(cli *CLI, out io.Writer) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	pool, err := postgres.ConnectWithRetry(ctx, cfg.DatabaseURL(), app.ConnectPolicy(cfg), app.PoolOptions(cfg, nil)...)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.RunMigrationsWithLock(ctx, pool, os.DirFS(c.Dir)); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "migrated %s from %s\n", cfg.DBName, c.Dir)
	return err
}

// Run parses args and executes the selected command. Logs go to errOut so
// command output on out stays pipeable.
func Run(args []string, out, errOut io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("pgapp"),
		kong.Description("Inspect and prepare the pgapp database connection"),
		kong.UsageOnError(),
		kong.Writers(out, errOut),
		kong.BindTo(out, (*io.Writer)(nil)),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.Get().String(),
		},
	)
	if err != nil {
		return err
	}

	slog.SetDefault(logging.NewLogger(errOut, "info", "text"))

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	slog.SetDefault(logging.NewLogger(errOut, cli.LogLevel, "text"))
	return kctx.Run(&cli)
}

func loadConfig(cli *CLI) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Debug("Loaded configuration", "log_level", cli.LogLevel, "db_host", cfg.DBHost, "db_name", cfg.DBName)
	return cfg, nil
}
