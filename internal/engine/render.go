package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/templar/internal/dag"
	starctx "github.com/leapstack-labs/templar/internal/starlark"
	"golang.org/x/sync/errgroup"
)

// Result is the output of one template render.
type Result struct {
	// ID identifies the render in log records
	ID string
	// Path is the template path relative to the templates directory
	Path string
	// Output is the generated text
	Output string
	// OutputPath is the output path requested by the template frontmatter, if any
	OutputPath string
	// Duration is the wall time of parse and generation
	Duration time.Duration
}

// Render parses and generates the template at path with a fresh context.
func (e *Engine) Render(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	logger := e.logger.With("render_id", id, "template", path)
	start := time.Now()

	logger.Debug("rendering template")

	tmpl, src, err := e.Parse(path)
	if err != nil {
		logger.Debug("parse failed", "error", err)
		return nil, err
	}

	evalCtx, err := e.NewContext(starctx.NewTemplateInfo(path), src.Config.Vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out, err := e.generator.Generate(tmpl, evalCtx)
	if err != nil {
		logger.Debug("generate failed", "error", err)
		return nil, err
	}

	result := &Result{
		ID:         id,
		Path:       path,
		Output:     out,
		OutputPath: src.Config.Output,
		Duration:   time.Since(start),
	}

	logger.Debug("rendered template", "bytes", len(out), "duration", result.Duration)
	return result, nil
}

// RenderAll renders templates concurrently, at most limit at a time
// (limit <= 0 means no limit). Results are returned in the order of paths.
// The first failure cancels renders that have not started yet.
func (e *Engine) RenderAll(ctx context.Context, paths []string, limit int) ([]*Result, error) {
	results := make([]*Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, path := range paths {
		g.Go(func() error {
			res, err := e.Render(gctx, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("rendered templates", "count", len(results))
	return results, nil
}

// IncludeGraph parses paths and, transitively, every template they include,
// and returns the include graph. Parse and load failures are joined into the
// returned error; the graph still holds every template that was reached.
// Nothing is evaluated.
func (e *Engine) IncludeGraph(ctx context.Context, paths []string) (*dag.Graph, error) {
	g := dag.NewGraph()
	seen := make(map[string]bool)
	queue := slices.Clone(paths)

	var errs []error
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := path.Clean(queue[0])
		queue = queue[1:]
		if seen[p] {
			continue
		}
		seen[p] = true
		g.AddNode(p)

		tmpl, _, err := e.Parse(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, inc := range tmpl.Includes() {
			inc = path.Clean(inc)
			if err := g.AddInclude(p, inc); err != nil {
				errs = append(errs, err)
				continue
			}
			queue = append(queue, inc)
		}
	}

	return g, errors.Join(errs...)
}

// Check parses every template in paths and everything they include, and
// reports all failures, including missing includes and include cycles.
// Nothing is evaluated.
func (e *Engine) Check(ctx context.Context, paths []string) error {
	g, err := e.IncludeGraph(ctx, paths)
	if g == nil {
		return err
	}

	errs := []error{err}
	if cycle := g.FindCycle(); cycle != nil {
		errs = append(errs, &dag.CycleError{Path: cycle})
	}
	return errors.Join(errs...)
}
