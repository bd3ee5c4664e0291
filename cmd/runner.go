package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	service    services.EnrichmentService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	Service    services.EnrichmentService // defaults to API
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Service == nil && opts.API != nil {
		opts.Service = opts.API
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		service:    opts.Service,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, tasksCommand, reviewCommand, watchCommand, historyCommand, tuiCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// openDatabase opens the configured activity database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	return shared.OpenMigrated(r.config.Database)
}

// newOrchestrator builds an orchestrator over the runner's service with activity recording.
//
// A database that cannot be opened only disables the activity log. The returned func closes
// the orchestrator and the database.
func (r *Runner) newOrchestrator(overrides ...func(*tasks.Options)) (*tasks.Orchestrator, func(), error) {
	if r.service == nil {
		return nil, nil, fmt.Errorf("%w: enrichment API not configured", shared.ErrServiceUnavailable)
	}

	opts := tasks.OptionsFromConfig(r.config.Enrichment, r.logger)
	for _, fn := range overrides {
		fn(&opts)
	}

	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("activity log disabled", "error", err)
	} else {
		repo := repositories.NewActivityRepository(db)
		opts.Recorder = repositories.NewActivityLogAdapter(repo, shared.WithLogger(r.logger, "component", "activity"))
	}

	orch := tasks.New(r.service, opts)
	return orch, func() {
		orch.Close()
		if db != nil {
			db.Close()
		}
	}, nil
}

// outputFormat resolves --format together with the --json and --csv shorthands.
func outputFormat(cmd *cli.Command) (formatter.Format, error) {
	switch {
	case cmd.Bool("json"):
		return formatter.FormatJSON, nil
	case cmd.Bool("csv"):
		return formatter.FormatCSV, nil
	}
	return formatter.ParseFormat(cmd.String("format"))
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
