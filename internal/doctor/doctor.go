// Package doctor diagnoses a hakichain installation: configuration, wallet,
// chain endpoint, upstream services and host limits.
package doctor

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// Doctor runs a set of checkers and writes the report.
type Doctor struct {
	checkers []Checker
	w        io.Writer
	options  Options
}

// New creates a Doctor writing to w (stdout when nil).
func New(opts Options, w io.Writer, checkers ...Checker) *Doctor {
	if w == nil {
		w = os.Stdout
	}
	return &Doctor{checkers: checkers, w: w, options: opts}
}

// AddChecker appends a checker.
func (d *Doctor) AddChecker(c Checker) {
	d.checkers = append(d.checkers, c)
}

// Run executes the selected checks concurrently and writes the report once
// all of them finished. Results keep checker order. A cancelled ctx returns
// its error and writes nothing.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	checkers := d.selected()
	results := make([]CheckResult, len(checkers))

	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = c.Check(ctx)
		}(i, c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Checks: results}
	for _, r := range results {
		report.Summary.add(r.Status)
	}

	if d.options.JSON {
		enc := json.NewEncoder(d.w)
		enc.SetIndent("", "  ")
		return report, enc.Encode(report)
	}
	NewOutput(d.w).Report(report)
	return report, nil
}

func (d *Doctor) selected() []Checker {
	if d.options.Category == "" {
		return d.checkers
	}
	var out []Checker
	for _, c := range d.checkers {
		if c.Category() == d.options.Category {
			out = append(out, c)
		}
	}
	return out
}
