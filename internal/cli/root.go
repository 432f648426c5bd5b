// Package cli is the intranet command line front end.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/intranet/internal/api/http"
	"github.com/spec-kit/intranet/internal/client"
	"github.com/spec-kit/intranet/internal/config"
	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/events"
	"github.com/spec-kit/intranet/internal/observability"
	"github.com/spec-kit/intranet/internal/service"
	"github.com/spec-kit/intranet/internal/store"
	"github.com/spec-kit/intranet/internal/worker"
	"github.com/spec-kit/intranet/internal/workflow"
)

// App holds what outlives a single command run: configuration, output
// streams and the embedded server, which keeps its data between runs.
type App struct {
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer

	embedOnce  sync.Once
	embedApp   *fiber.App
	embedToken string
	embedErr   error
}

// NewApp builds the CLI. Results go to out; notifications and logs to errOut.
func NewApp(cfg *config.Config, out, errOut io.Writer) *App {
	return &App{cfg: cfg, out: out, errOut: errOut}
}

// Execute runs one command line.
func (a *App) Execute(ctx context.Context, args []string) error {
	cmd := a.Command()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// Command builds a fresh command tree.
func (a *App) Command() *cobra.Command {
	root := &RootCommand{app: a}

	cmd := &cobra.Command{
		Use:               "intranet",
		Short:             "Work with intranet resources: assets, reservations, facilities, attendance and more",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: root.connect,
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&root.API, "api", a.cfg.Client.BaseURL, "base URL of the intranet API")
	flags.StringVar(&root.Token, "token", a.cfg.Client.Token, "bearer token (defaults to INTRANET_TOKEN)")
	flags.BoolVar(&root.Embedded, "embedded", false, "run against an in-process development server")
	flags.StringVar(&root.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		NewListCommand(root),
		NewGetCommand(root),
		NewHistoryCommand(root),
		NewCreateCommand(root),
		NewUpdateCommand(root),
		NewDeleteCommand(root),
		NewTransitionCommand(root),
		NewStatsCommand(root),
		NewExportCommand(root),
		NewDashboardCommand(root),
	)
	return cmd
}

func (a *App) embedded(logger *zap.Logger, metrics *observability.Metrics) (*fiber.App, string, error) {
	a.embedOnce.Do(func() {
		a.embedApp, a.embedToken, a.embedErr = httptransport.NewEmbedded(a.cfg.Auth, logger, metrics)
	})
	return a.embedApp, a.embedToken, a.embedErr
}

// RootCommand carries the global flags and the connection built from them.
type RootCommand struct {
	app *App

	API      string
	Token    string
	Embedded bool
	LogLevel string

	logger     *zap.Logger
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	client     *client.Client
}

func (r *RootCommand) connect(cmd *cobra.Command, _ []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return nil
		}
	}
	cfg := r.app.cfg
	logger, err := observability.NewLogger(config.LoggerConfig{Level: r.LogLevel, Output: "stderr"})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	r.logger = logger
	r.metrics = observability.NewMetrics("intranet_cli")

	r.dispatcher = events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(r.dispatcher, logger, r.app.errOut))
	worker.StartEventLogger(r.dispatcher, logger)

	var (
		transport client.Transport
		token     = r.Token
	)
	if r.Embedded {
		app, embeddedToken, err := r.app.embedded(logger, nil)
		if err != nil {
			return fmt.Errorf("start embedded server: %w", err)
		}
		transport = client.NewAppTransport(app, httptransport.APIPrefix)
		token = embeddedToken
	} else {
		transport = client.NewAgentTransport(r.API, cfg.Client.Timeout())
	}

	session, err := client.NewSession(token)
	if err != nil {
		return err
	}
	if session.Expired() {
		return client.ErrSessionExpired
	}
	r.client = client.New(transport, session, client.WithLogger(logger), client.WithMetrics(r.metrics))
	logger.Debug("connected", zap.String("api", r.API), zap.Bool("embedded", r.Embedded), zap.String("actor", session.Actor()))
	return nil
}

// resource resolves a kind given by name ("asset") or collection ("assets").
func (r *RootCommand) resource(arg string) (*client.ResourceClient, error) {
	kind, err := parseKind(arg)
	if err != nil {
		return nil, err
	}
	return r.client.Resource(kind)
}

func (r *RootCommand) store(rc *client.ResourceClient) *store.Store {
	return store.New(rc.Kind(), rc, r.logger)
}

func (r *RootCommand) runner(rc *client.ResourceClient) (*workflow.Runner, error) {
	machine, err := workflow.For(rc.Kind())
	if err != nil {
		return nil, err
	}
	return workflow.NewRunner(machine, rc, r.logger,
		workflow.WithDispatcher(r.dispatcher),
		workflow.WithActor(r.client.Session().Actor()),
	), nil
}

func (r *RootCommand) emit(ctx context.Context, event events.Event) {
	event.Actor = r.client.Session().Actor()
	if err := events.Emit(ctx, r.dispatcher, event); err != nil {
		r.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func (r *RootCommand) out() io.Writer {
	return r.app.out
}

func (r *RootCommand) errOut() io.Writer {
	return r.app.errOut
}

func parseKind(arg string) (domain.Kind, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	for _, kind := range domain.Kinds() {
		schema := domain.MustSchema(kind)
		if arg == string(kind) || arg == schema.Collection || arg == strings.ReplaceAll(string(kind), "_", "-") {
			return kind, nil
		}
	}
	names := make([]string, 0, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		names = append(names, string(kind))
	}
	return "", fmt.Errorf("unknown resource kind %q (one of %s)", arg, strings.Join(names, ", "))
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

var errInvalidAssignment = errors.New("expected key=value")

// parseSets turns repeated --set key=value flags into a map of raw strings.
func parseSets(sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q: %w", s, errInvalidAssignment)
		}
		out[key] = value
	}
	return out, nil
}
