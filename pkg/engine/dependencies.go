package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/installer/pkg/dependencies"
	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/telemetry"
)

// DependencyInstaller makes sure every declared dependency is present,
// in declaration order. It stops at the first failure.
type DependencyInstaller struct {
	services dependencies.Services
	engine   *Engine
}

// Install checks and, when needed, acquires each dependency.
func (d *DependencyInstaller) Install(ctx context.Context, rs *runState, deps []dependencies.Dependency) error {
	for _, dep := range deps {
		result, err := d.ensure(ctx, rs, dep)
		if err != nil {
			return err
		}
		rs.result.Dependencies = append(rs.result.Dependencies, result)
	}
	return nil
}

func (d *DependencyInstaller) ensure(ctx context.Context, rs *runState, dep dependencies.Dependency) (res DependencyResult, err error) {
	res = DependencyResult{Name: dep.Name(), Range: dep.Range()}
	logger := rs.logger.With().Str("dependency", dep.Name()).Str("range", dep.Range()).Logger()

	ctx, span := d.engine.tracer.StartDependencySpan(ctx, dep.Name(), dep.Range())
	defer func() { telemetry.EndSpan(span, err) }()

	installed, err := dep.IsAlreadyInstalled(ctx, d.services.Runner)
	if err != nil {
		d.engine.metrics.RecordDependencyCheck(dep.Name(), "error")
		return res, errdefs.NewDependencyError("failed to check "+dep.Name(), err).
			WithDetail("range", dep.Range())
	}
	if installed {
		d.engine.metrics.RecordDependencyCheck(dep.Name(), "installed")
		logger.Info().Msg("Dependency already installed")
		res.AlreadyInstalled = true
		return res, nil
	}
	d.engine.metrics.RecordDependencyCheck(dep.Name(), "missing")

	methods, err := dep.Methods(d.services.Platform)
	if err != nil {
		return res, err
	}
	method, ok := dependencies.TrySatisfyDependency(dep, methods)
	if !ok {
		return res, errdefs.NewDependencyError(fmt.Sprintf("cannot acquire %s %s", dep.Name(), dep.Range()), errdefs.ErrNoAcquisitionMethod).
			WithDetail("platform", d.services.Platform.String()).
			WithDetail("methods", len(methods))
	}
	res.Method = method.Describe()

	if rs.dryRun {
		logger.Info().Str("method", res.Method).Msg("Dry run: dependency not acquired")
		return res, nil
	}

	return res, d.acquire(ctx, rs, dep, method, logger)
}

func (d *DependencyInstaller) acquire(ctx context.Context, rs *runState, dep dependencies.Dependency, method dependencies.AcquisitionMethod, logger zerolog.Logger) error {
	logger.Info().Str("method", method.Describe()).Msg("Acquiring dependency")
	started := d.engine.now()

	err := method.Acquire(ctx, d.services)
	elapsed := d.engine.now().Sub(started)
	if err != nil {
		d.engine.metrics.RecordDependencyAcquisition(dep.Name(), "error", elapsed)
		d.engine.event(ctx, rs, PhaseDependencies, EventLevelError, fmt.Sprintf("acquisition of %s failed: %v", dep.Name(), err))
		return errdefs.NewDependencyError("failed to acquire "+dep.Name(), err).
			WithDetail("method", method.Describe())
	}

	d.engine.metrics.RecordDependencyAcquisition(dep.Name(), "completed", elapsed)
	d.engine.event(ctx, rs, PhaseDependencies, EventLevelInfo, fmt.Sprintf("acquired %s via %s", dep.Name(), method.Describe()))
	logger.Info().Dur("duration", elapsed).Msg("Dependency acquired")
	return nil
}
