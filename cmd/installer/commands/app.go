package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/installer/pkg/config"
	"github.com/openfroyo/installer/pkg/engine"
	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/policy"
	"github.com/openfroyo/installer/pkg/stores"
	"github.com/openfroyo/installer/pkg/tasks"
	"github.com/openfroyo/installer/pkg/telemetry"
	"github.com/openfroyo/installer/pkg/transports/local"
	"github.com/openfroyo/installer/pkg/workflow"
)

// app is what every command needs: settings, telemetry, the detected
// platform and the history store.
type app struct {
	settings  *config.Settings
	telemetry *telemetry.Telemetry
	platform  platform.Info
	registry  *tasks.Registry
	store     *stores.SQLiteStore
	logger    zerolog.Logger
}

// newApp loads settings, applies --verbosity, starts telemetry and opens
// the history store.
func newApp(ctx context.Context) (*app, error) {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, err
	}
	if verbosity != "" {
		level, err := telemetry.VerbosityLevel(verbosity)
		if err != nil {
			return nil, err
		}
		settings.Telemetry.Logging.Level = level
	}

	tel, err := telemetry.New(&settings.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()
	log.Logger = logger
	zerolog.SetGlobalLevel(telemetry.ParseLevel(settings.Telemetry.Logging.Level))

	info, err := platform.Detect()
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: settings.StatePath})
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	logger.Debug().
		Str("platform", info.String()).
		Bool("elevated", info.Elevated).
		Str("state", settings.StatePath).
		Msg("Installer initialized")

	return &app{
		settings:  settings,
		telemetry: tel,
		platform:  info,
		registry:  tasks.DefaultRegistry(),
		store:     store,
		logger:    logger,
	}, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.store.Close(), a.telemetry.Shutdown(ctx))
}

func (a *app) engine() *engine.Engine {
	client := &http.Client{Timeout: a.settings.DownloadTimeout}
	return engine.New(a.registry, a.platform,
		engine.WithDownloader(local.NewHTTPDownloader(a.settings.CacheDirectory, client)),
		engine.WithRecorder(a.store),
		engine.WithTracer(a.telemetry.Tracer),
		engine.WithMetrics(a.telemetry.Metrics),
		engine.WithLogger(a.telemetry.Logger.NewComponentLogger("engine").Zerolog()),
	)
}

func (a *app) loadWorkflow() (*workflow.Workflow, error) {
	if workflowPath == "" {
		return nil, errors.New("a workflow file is required (--workflow)")
	}
	return config.LoadWorkflow(workflowPath, a.registry, a.platform)
}

// policyEngine builds the admission engine from the policy settings: the
// built-in policies, those found under the policy paths, minus the disabled ones.
func (a *app) policyEngine(ctx context.Context) (*policy.Engine, error) {
	eng, err := policy.NewEngine(ctx, a.logger, policy.WithData(a.settings.Policies.Data))
	if err != nil {
		return nil, err
	}
	if err := eng.LoadPolicies(ctx, a.settings.Policies.Paths); err != nil {
		return nil, errdefs.NewConfigurationError("failed to load policies", err)
	}
	for _, name := range a.settings.Policies.Disabled {
		if err := eng.DisablePolicy(name); err != nil {
			return nil, errdefs.NewConfigurationError("invalid policies.disabled", err)
		}
	}
	return eng, nil
}

// admit evaluates the admission policies against wf for a run with tag.
// Warnings are logged. Blocking violations reject the run with a policy
// error; the result is returned either way.
func (a *app) admit(ctx context.Context, wf *workflow.Workflow, tag workflow.Tag) (*policy.Result, error) {
	eng, err := a.policyEngine(ctx)
	if err != nil {
		return nil, err
	}

	in, err := policy.NewInput(wf, a.platform, tag, dryRun)
	if err != nil {
		return nil, err
	}
	res, err := eng.Evaluate(ctx, in)
	if err != nil {
		return nil, errdefs.NewPolicyError("policy evaluation failed", err)
	}

	for _, w := range res.Warnings {
		a.logger.Warn().Str("policy", w.Policy).Str("step", w.Step).Msg(w.Message)
	}
	if res.Allowed {
		return res, nil
	}

	msgs := make([]string, len(res.Violations))
	for i, v := range res.Violations {
		msgs[i] = v.String()
	}
	return res, errdefs.NewPolicyError(
		fmt.Sprintf("workflow %s rejected by %d policy violation(s)", wf.Name, len(res.Violations)),
		errors.New(strings.Join(msgs, "; ")),
	).WithDetail("violations", res.Violations)
}

// journalPath is <dir>/<workflow>.journal, where dir is the install
// policy's journal directory or the settings default.
func (a *app) journalPath(wf *workflow.Workflow) (string, error) {
	dir := a.settings.JournalDirectory
	if cfg, ok := wf.Configuration("policy"); ok {
		if policy, ok := cfg.(*workflow.InstallPolicy); ok && policy.JournalDirectory != "" {
			resolved, err := wf.ConfigurationResolver(a.platform).String(policy.JournalDirectory)
			if err != nil {
				return "", err
			}
			dir = resolved
		}
	}
	return filepath.Join(dir, journalFileName(wf.Name)), nil
}

func journalFileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return clean + ".journal"
}
