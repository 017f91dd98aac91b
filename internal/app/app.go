package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vogtb/go-gridcalc/internal/ctxlog"
	"github.com/vogtb/go-gridcalc/internal/formula"
	"github.com/vogtb/go-gridcalc/internal/grid"
	"github.com/vogtb/go-gridcalc/internal/report"
	"github.com/vogtb/go-gridcalc/internal/script"
)

// App runs one script against a fresh grid and reports the result.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp creates an App. the report goes to outW, logs to logW.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")
	return &App{outW: outW, logger: logger, config: cfg}
}

// Summary describes a finished run
type Summary struct {
	Steps        int
	Evaluations  int
	Cells        int
	ErrorCells   int
	CycleCells   int
	FinalEdges   int
	Generation   uint32
	CycleHeadsAt []formula.Pos // cycle heads reported by any wave
	CycleRemains bool          // the final edges still contain a cycle
	StaleCells   int           // readers left stale by deletes
}

// Run loads the script, applies it and writes the report.
func (a *App) Run(ctx context.Context) (*Summary, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run started.", "script", a.config.ScriptPath)

	s, err := script.Load(ctx, a.config.ScriptPath)
	if err != nil {
		return nil, err
	}

	g := grid.New(
		grid.WithLogger(a.logger),
		grid.WithRecomputeOnDelete(a.config.RecomputeOnDelete),
	)
	waves, err := s.Apply(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("failed to apply script: %w", err)
	}

	cells := g.Cells()
	summary := &Summary{
		Steps:      len(waves),
		Cells:      len(cells),
		FinalEdges: g.EdgeCount(),
		Generation: g.Generation(),
		// a cycle reported mid-script may have been broken by a later step
		CycleRemains: g.HasCycle(),
	}
	for _, w := range waves {
		summary.Evaluations += w.Evaluations
		summary.CycleHeadsAt = append(summary.CycleHeadsAt, w.CycleHeads...)
		summary.StaleCells += w.Stale
	}
	for _, c := range cells {
		if c.Err == nil {
			continue
		}
		summary.ErrorCells++
		if c.Err.Kind == formula.CycleHeadError || c.Err.Kind == formula.CycleMemberError {
			summary.CycleCells++
		}
	}

	if summary.CycleRemains {
		a.logger.Warn("Grid contains reference cycles.", "cells", summary.CycleCells)
	}
	if summary.StaleCells > 0 {
		a.logger.Warn("Deleted cells left stale readers.", "cells", summary.StaleCells)
	}
	a.logger.Info("Script applied.",
		"steps", summary.Steps,
		"evaluations", summary.Evaluations,
		"cells", summary.Cells,
		"errors", summary.ErrorCells,
		"edges", summary.FinalEdges,
	)

	if err := report.Write(a.outW, cells, a.config.Output); err != nil {
		return nil, err
	}
	a.logger.Debug("App.Run finished.")
	return summary, nil
}
