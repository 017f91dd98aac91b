// Package script loads batch-edit scripts. A script is an HCL file of
// set and delete blocks that are applied to a grid in file order.
package script

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vogtb/go-gridcalc/internal/ctxlog"
	"github.com/vogtb/go-gridcalc/internal/formula"
	"github.com/vogtb/go-gridcalc/internal/grid"
)

// Op is the kind of edit a step performs
type Op int

const (
	OpSet Op = iota
	OpDelete
)

func (o Op) String() string {
	if o == OpDelete {
		return "delete"
	}
	return "set"
}

// Step is one decoded block
type Step struct {
	Op    Op
	Cells []formula.Pos
	Input string // only for OpSet
	Range hcl.Range
}

// Script is a parsed batch-edit file
type Script struct {
	Filename string
	Steps    []Step
}

type hclSetBlock struct {
	Cells []string  `hcl:"cells"`
	Input cty.Value `hcl:"input"`
}

type hclDeleteBlock struct {
	Cells []string `hcl:"cells"`
}

// Load reads and parses the script at path.
func Load(ctx context.Context, path string) (*Script, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading script.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}

	s, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Script loaded.", "path", path, "steps", len(s.Steps))
	return s, nil
}

// Parse decodes src. filename is only used in error messages.
func Parse(src []byte, filename string) (*Script, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse script %s: %w", filename, diags)
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("failed to parse script %s: unexpected body type %T", filename, file.Body)
	}

	for name, attr := range body.Attributes {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unexpected attribute",
			Detail:   fmt.Sprintf("Top-level attribute %q is not allowed; use set or delete blocks.", name),
			Subject:  attr.SrcRange.Ptr(),
		})
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode script %s: %w", filename, diags)
	}

	s := &Script{Filename: filename}
	var errs *multierror.Error
	for _, block := range body.Blocks {
		step, err := decodeBlock(block)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		s.Steps = append(s.Steps, step)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid script %s: %w", filename, err)
	}
	return s, nil
}

func decodeBlock(block *hclsyntax.Block) (Step, error) {
	rng := block.DefRange()
	if len(block.Labels) > 0 {
		return Step{}, fmt.Errorf("%s: %s block takes no labels", rng, block.Type)
	}

	switch block.Type {
	case "set":
		var b hclSetBlock
		if diags := gohcl.DecodeBody(block.Body, nil, &b); diags.HasErrors() {
			return Step{}, diags
		}
		input, err := inputText(b.Input)
		if err != nil {
			return Step{}, fmt.Errorf("%s: %w", rng, err)
		}
		cells, err := parseCells(rng, b.Cells)
		if err != nil {
			return Step{}, err
		}
		return Step{Op: OpSet, Cells: cells, Input: input, Range: rng}, nil

	case "delete":
		var b hclDeleteBlock
		if diags := gohcl.DecodeBody(block.Body, nil, &b); diags.HasErrors() {
			return Step{}, diags
		}
		cells, err := parseCells(rng, b.Cells)
		if err != nil {
			return Step{}, err
		}
		return Step{Op: OpDelete, Cells: cells, Range: rng}, nil
	}

	return Step{}, fmt.Errorf("%s: unknown block type %q", rng, block.Type)
}

// inputText turns a string, number or bool into the raw cell input
func inputText(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", fmt.Errorf("input must not be null")
	}
	if !v.IsWhollyKnown() {
		return "", fmt.Errorf("input must be a known value")
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("input must be a string, number or bool: %w", err)
	}
	return s.AsString(), nil
}

// parseCells expands addresses and ranges, reporting every bad entry
func parseCells(rng hcl.Range, entries []string) ([]formula.Pos, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: cells must not be empty", rng)
	}

	var (
		out  []formula.Pos
		errs *multierror.Error
	)
	for _, entry := range entries {
		positions, err := formula.ParseRange(entry)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", rng, err))
			continue
		}
		out = append(out, positions...)
	}
	return out, errs.ErrorOrNil()
}

// Apply runs every step against g and returns the stats of each wave.
func (s *Script) Apply(ctx context.Context, g *grid.Grid) ([]grid.WaveStats, error) {
	logger := ctxlog.FromContext(ctx)
	waves := make([]grid.WaveStats, 0, len(s.Steps))

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return waves, fmt.Errorf("script %s stopped before step %d: %w", s.Filename, i+1, err)
		}

		var wave grid.WaveStats
		switch step.Op {
		case OpSet:
			wave = g.SetCellContents(step.Cells, step.Input)
		case OpDelete:
			wave = g.DeleteCellContents(step.Cells)
		}
		logger.Debug("Applied script step.",
			"step", i+1,
			"op", step.Op.String(),
			"cells", len(step.Cells),
			"line", step.Range.Start.Line,
			"evaluations", wave.Evaluations,
		)
		waves = append(waves, wave)
	}
	return waves, nil
}
