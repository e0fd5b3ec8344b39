// Package engine implements the Opportunity Engine: reads a consistent
// snapshot view, runs the five detectors concurrently, dedupes, ranks and
// truncates the results. The OPEN/CLOSED alert state machine is the separate
// AlertTracker type; Tick does not run it. Grounded on original_source/backend/app/services/opportunity_engine.py's
// per-tick fan-out, adapted from asyncio.gather to a goroutine fan-in.
package engine

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"arbwatch/allocator"
	"arbwatch/applog"
	"arbwatch/config"
	"arbwatch/errs"
	"arbwatch/models"
	"arbwatch/snapshot"
)

// detectorFunc is the shared signature every strategy evaluator implements.
type detectorFunc func(view snapshot.View, cfg *config.Config, curve allocator.Curve, now time.Time) []models.Opportunity

// detectorLog is shared by the individual detector files (kimchi.go,
// fundingarb.go, ...) to report sanity-check drops without threading a
// logger through every detector's call signature.
var detectorLog = applog.Default().WithComponent("engine")

// Engine orchestrates one detection tick over a shared Snapshot.
type Engine struct {
	cfg   *config.Config
	snap  *snapshot.Snapshot
	curve allocator.Curve
	log   *applog.Entry

	detectors []detectorFunc
}

// New builds an Engine bound to cfg and snap, with the allocator curve
// derived from cfg.AllocationCurve.
func New(cfg *config.Config, snap *snapshot.Snapshot) *Engine {
	return &Engine{
		cfg:   cfg,
		snap:  snap,
		curve: allocator.NewCurve(cfg.AllocationCurve),
		log:   applog.Default().WithComponent("engine"),
		detectors: []detectorFunc{
			detectSpotCross,
			detectKimchiPremium,
			detectFundingArb,
			detectSpotPerpBasis,
			detectPerpPerpSpread,
		},
	}
}

// Tick runs a single detection pass and returns the ranked, deduplicated,
// truncated Opportunity list. ctx is honored only as a cancellation signal
// between detector runs, since detectors themselves are pure in-memory
// computations over an already-fetched snapshot view.
func (e *Engine) Tick(ctx context.Context) []models.Opportunity {
	view := e.snap.View()
	now := time.Now()

	perDetector := make([][]models.Opportunity, len(e.detectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range e.detectors {
		i, d := i, d
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					e.log.WithFields(applog.Fields{"panic": r}).Error("detector panicked")
				}
			}()
			if gctx.Err() != nil {
				return gctx.Err()
			}
			perDetector[i] = d(view, e.cfg, e.curve, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.WithError(err).Warn("tick cancelled while waiting on detectors")
		return nil
	}

	var all []models.Opportunity
	for _, opps := range perDetector {
		all = append(all, opps...)
	}
	all = e.dropInvariantViolations(all)

	deduped := dedup(all)
	sort.Slice(deduped, func(i, j int) bool {
		return abs(deduped[i].SpreadBps) > abs(deduped[j].SpreadBps)
	})
	if e.cfg.MaxOpportunities > 0 && len(deduped) > e.cfg.MaxOpportunities {
		deduped = deduped[:e.cfg.MaxOpportunities]
	}
	return deduped
}

// dropInvariantViolations enforces the one structural invariant every
// Opportunity must satisfy regardless of which detector produced it: at
// least two legs, since an opportunity with fewer can't be delta-neutral.
// A detector bug that slips past its own checks is logged and dropped here
// rather than reaching subscribers.
func (e *Engine) dropInvariantViolations(opps []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		if len(o.Legs) < 2 {
			err := errs.Wrap(errs.Invariant, string(o.Kind), "opportunity has fewer than 2 legs", nil)
			e.log.WithError(err).WithFields(applog.Fields{"symbol": o.Symbol}).Error("dropping malformed opportunity")
			continue
		}
		out = append(out, o)
	}
	return out
}

func dedup(opps []models.Opportunity) []models.Opportunity {
	seen := make(map[string]bool, len(opps))
	out := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		key := o.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}
	return out
}
