package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/ingest/espn"
	"github.com/fortuna/juno/internal/store"
)

// GameIngester loads historical games and box scores
type GameIngester interface {
	IngestDate(ctx context.Context, date time.Time) (*espn.DateResult, error)
	IngestGame(ctx context.Context, eventID string) (*store.Game, error)
}

// Runner executes backfill specs using the ESPN ingester.
type Runner struct {
	ingester GameIngester
}

// NewRunner constructs a runner around an ingester.
func NewRunner(ingester GameIngester) *Runner {
	return &Runner{ingester: ingester}
}

// Run executes the job spec, reporting progress via the Reporter if provided.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) error {
	if reporter == nil {
		reporter = nopReporter{}
	}
	reporter.OnJobStart(spec)

	if spec.DryRun {
		reporter.OnProgress(dryRunMessage(spec), 0, 0)
		reporter.OnJobComplete()
		return nil
	}

	switch spec.Type {
	case JobTypeGame:
		if len(spec.GameIDs) == 0 {
			return fmt.Errorf("no game IDs provided for job type 'game'")
		}
		total := len(spec.GameIDs)
		for idx, gameID := range spec.GameIDs {
			if err := ctx.Err(); err != nil {
				return err
			}

			reporter.OnProgress(fmt.Sprintf("Processing game %s (%d/%d)", gameID, idx+1, total), idx, total)

			if _, err := r.ingester.IngestGame(ctx, gameID); err != nil {
				err = fmt.Errorf("game %s: %w", gameID, err)
				reporter.OnJobError(err)
				return err
			}

			reporter.OnGameProcessed(gameID)
			reporter.OnProgress(fmt.Sprintf("Game %s complete", gameID), idx+1, total)
		}
	case JobTypeSeason, JobTypeDateRange:
		dates := fantasy.DatesBetween(orderedRange(spec.Start, spec.End))
		if len(dates) == 0 {
			reporter.OnProgress("No dates to process", 0, 0)
			break
		}

		total := len(dates)
		for idx, date := range dates {
			if err := ctx.Err(); err != nil {
				return err
			}

			reporter.OnDateStart(date, idx, total)

			res, err := r.ingester.IngestDate(ctx, date)
			if err != nil {
				err = fmt.Errorf("%s: %w", fantasy.DateKey(date), err)
				reporter.OnJobError(err)
				return err
			}
			for _, g := range res.Games {
				reporter.OnGameProcessed(g.ExternalID)
			}

			reporter.OnProgress(fmt.Sprintf("Processed %s (%d games, %d lines)", date.Format("Jan 2, 2006"), len(res.Games), res.Lines), idx+1, total)
		}
	default:
		return fmt.Errorf("unsupported job type %s", spec.Type)
	}

	reporter.OnJobComplete()
	return nil
}

func dryRunMessage(spec JobSpec) string {
	switch spec.Type {
	case JobTypeGame:
		return fmt.Sprintf("Dry-run: would ingest %d games", len(spec.GameIDs))
	default:
		start, end := orderedRange(spec.Start, spec.End)
		return fmt.Sprintf("Dry-run: would ingest %d dates from %s to %s",
			len(fantasy.DatesBetween(start, end)), fantasy.DateKey(start), fantasy.DateKey(end))
	}
}

func orderedRange(start, end time.Time) (time.Time, time.Time) {
	if end.Before(start) {
		return end, start
	}
	return start, end
}

type nopReporter struct{}

func (nopReporter) OnJobStart(JobSpec)              {}
func (nopReporter) OnDateStart(time.Time, int, int) {}
func (nopReporter) OnGameProcessed(string)          {}
func (nopReporter) OnProgress(string, int, int)     {}
func (nopReporter) OnJobComplete()                  {}
func (nopReporter) OnJobError(error)                {}
