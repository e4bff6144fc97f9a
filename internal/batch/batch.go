// Package batch loads many campaign snapshots from a file and evaluates them
// concurrently. It also loads product research files for opportunity scoring.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/ppcwatch/internal/report"
	"github.com/blackwell-systems/ppcwatch/internal/scoring"
)

// DefaultWorkers is the evaluation concurrency used when none is configured.
const DefaultWorkers = 8

// File is the on-disk batch document.
type File struct {
	Campaigns []report.Campaign `json:"campaigns" yaml:"campaigns"`
}

// ProductFile is the on-disk product research document.
type ProductFile struct {
	Products []scoring.Product `json:"products" yaml:"products"`
}

// decodeFile parses a YAML or JSON document into v. JSON is detected by
// extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, v)
	} else {
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadProducts parses a product research file.
func LoadProducts(path string) ([]scoring.Product, error) {
	var f ProductFile
	if err := decodeFile(path, &f); err != nil {
		return nil, err
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("%s: no products defined", filepath.Base(path))
	}
	return f.Products, nil
}

// Load parses a YAML or JSON batch file. JSON is detected by extension.
func Load(path string) ([]report.Campaign, error) {
	var f File
	if err := decodeFile(path, &f); err != nil {
		return nil, err
	}
	if len(f.Campaigns) == 0 {
		return nil, fmt.Errorf("%s: no campaigns defined", filepath.Base(path))
	}
	for i := range f.Campaigns {
		if f.Campaigns[i].Name == "" {
			f.Campaigns[i].Name = fmt.Sprintf("campaign-%d", i+1)
		}
	}
	return f.Campaigns, nil
}

// Evaluator evaluates a single campaign. *report.Engine satisfies it.
type Evaluator interface {
	Evaluate(report.Campaign) (report.Report, error)
}

// Result pairs a campaign with its report or the error that stopped it.
type Result struct {
	Campaign string         `json:"campaign"`
	Report   *report.Report `json:"report,omitempty"`
	Err      error          `json:"-"`
	Error    string         `json:"error,omitempty"`
}

// Run evaluates campaigns with at most workers running at once. Results are
// returned in input order. A failing campaign does not stop the others; the
// returned error is non-nil only when ctx is cancelled.
func Run(ctx context.Context, ev Evaluator, campaigns []report.Campaign, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]Result, len(campaigns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range campaigns {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = evaluate(ev, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func evaluate(ev Evaluator, c report.Campaign) Result {
	res := Result{Campaign: c.Name}
	r, err := ev.Evaluate(c)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.Report = &r
	return res
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
