// Command board is a terminal front end for the asset board.
//
//	board [global flags] <command> [args]
//
// Commands:
//
//	list                      show every asset
//	columns                   show assets grouped by status
//	add --email E [...]       create an asset
//	move ID STATUS            change an asset's status
//	edit ID [--email ...]     change asset fields
//	delete ID                 remove an asset
//	login --email E --password P
//	register --email E --password P [--name N]
//	logout
//	whoami
//	profile get EMAIL | profile list | profile save --email E [...] | profile delete ID
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"flowtrack/internal/account"
	"flowtrack/internal/apiclient"
	"flowtrack/internal/board"
	"flowtrack/internal/config"
	"flowtrack/internal/metrics"
	"flowtrack/internal/notify"
	"flowtrack/internal/session"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	fs := pflag.NewFlagSet("board", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&cfg.RollbackPolicy, "policy", cfg.RollbackPolicy, "rollback policy for failed mutations (diverge|revert)")
	fs.StringVar(&cfg.SessionFile, "session-file", cfg.SessionFile, "where the signed-in session is stored")
	fs.BoolVar(&cfg.StrictStatus, "strict-status", cfg.StrictStatus, "reject statuses outside the known vocabulary")
	metricsOut := fs.String("metrics-out", "", "write mutation counters to this file in Prometheus text format")
	verbose := fs.BoolP("verbose", "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	a, err := newApp(cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.board.Close()

	err = a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
	if *metricsOut != "" {
		if werr := a.counter.WriteFile(*metricsOut); werr != nil {
			a.logger.Warn("writing metrics failed", "path", *metricsOut, "error", werr)
		}
	}
	return err
}

const usage = `Usage: board [global flags] <command> [args]

Commands:
  list                      show every asset
  columns                   show assets grouped by status
  add --email E [...]       create an asset
  move ID STATUS            change an asset's status
  edit ID [--email ...]     change asset fields
  delete ID                 remove an asset
  login --email E --password P
  register --email E --password P [--name N]
  logout
  whoami
  profile get EMAIL | profile list | profile save --email E [...] | profile delete ID

Global flags:
`

type app struct {
	logger   *slog.Logger
	client   *apiclient.Client
	sessions *session.Manager
	account  *account.Service
	notices  *notify.Channel
	board    *board.Board
	counter  *metrics.MutationCounter
	out      io.Writer
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	logger := cfg.NewLogger()

	sessions := session.NewManager(session.NewFileStorage(cfg.SessionFile), logger)

	opts := []apiclient.Option{
		apiclient.WithLogger(logger),
		apiclient.WithToken(sessions.Token),
		apiclient.WithStrictStatus(cfg.StrictStatus),
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, apiclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	}
	client := apiclient.New(cfg.APIBaseURL, opts...)

	acct := account.New(client, sessions, logger)
	if _, err := acct.Init(); err != nil {
		return nil, err
	}

	notices := notify.New(
		notify.WithTTL(cfg.NotifyTTL),
		notify.WithSink(func(n *notify.Notification) {
			if n != nil {
				fmt.Fprintf(stderr, "[%s] %s\n", n.Kind, n.Message)
			}
		}),
	)
	counter := metrics.NewMutationCounter()

	b := board.New(client,
		board.WithLogger(logger),
		board.WithNotifier(notices),
		board.WithObserver(counter),
		board.WithPolicy(board.Policy(cfg.RollbackPolicy)),
	)

	return &app{
		logger:   logger,
		client:   client,
		sessions: sessions,
		account:  acct,
		notices:  notices,
		board:    b,
		counter:  counter,
		out:      stdout,
	}, nil
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return a.list(ctx)
	case "columns":
		return a.columns(ctx)
	case "add":
		return a.add(ctx, args)
	case "move":
		return a.move(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "delete":
		return a.remove(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		return a.logout()
	case "whoami":
		return a.whoami()
	case "profile":
		return a.profile(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
