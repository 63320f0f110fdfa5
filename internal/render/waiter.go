package render

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/cloudratio/advisor-report-backend/internal/config"
)

// A WaitPhase is one bounded step of the readiness protocol run against a
// rendered page before it is snapshotted. Phases run strictly in order and a
// phase that overruns its timeout is abandoned, never awaited, so the whole
// sequence terminates within the sum of the phase timeouts.
type WaitPhase struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context, page *rod.Page) error
}

type PhaseResult struct {
	Name      string `json:"name"`
	ElapsedMS int64  `json:"elapsed_ms"`
	TimedOut  bool   `json:"timed_out"`
	Error     string `json:"error,omitempty"`
}

// WaitReport records what every phase did. It is stored on the job row so a
// degraded artifact can be traced back to the phase that gave up.
type WaitReport struct {
	Phases   []PhaseResult `json:"phases"`
	Degraded bool          `json:"degraded"`
	TotalMS  int64         `json:"total_ms"`
}

// RunWaitPhases drives the phases in order. A failed or timed-out phase marks
// the report degraded and the run continues with the next phase. stop is
// checked between phases only; when it reports true the run ends early and the
// second return value is true.
func RunWaitPhases(ctx context.Context, page *rod.Page, phases []WaitPhase, stop func() bool) (*WaitReport, bool) {
	report := &WaitReport{Phases: []PhaseResult{}}
	start := time.Now()
	for _, phase := range phases {
		if stop != nil && stop() {
			report.TotalMS = time.Since(start).Milliseconds()
			return report, true
		}
		result := runPhase(ctx, page, phase)
		if result.TimedOut || result.Error != "" {
			report.Degraded = true
			log.Warnf("wait phase %s degraded after %dms: %s", result.Name, result.ElapsedMS, result.Error)
		} else {
			log.Debugf("wait phase %s completed in %dms", result.Name, result.ElapsedMS)
		}
		report.Phases = append(report.Phases, result)
	}
	report.TotalMS = time.Since(start).Milliseconds()
	return report, false
}

func runPhase(ctx context.Context, page *rod.Page, phase WaitPhase) PhaseResult {
	result := PhaseResult{Name: phase.Name}
	if ctx.Err() != nil {
		result.TimedOut = true
		result.Error = "skipped: " + ctx.Err().Error()
		return result
	}

	phaseCtx, cancel := context.WithTimeout(ctx, phase.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- phase.Run(phaseCtx, page) }()

	select {
	case err := <-done:
		result.ElapsedMS = time.Since(start).Milliseconds()
		if err != nil {
			result.Error = err.Error()
			result.TimedOut = phaseCtx.Err() != nil
		}
	case <-phaseCtx.Done():
		// The phase ignored its context. Leave its goroutine behind rather
		// than let it hold up the job.
		result.ElapsedMS = time.Since(start).Milliseconds()
		result.TimedOut = true
		result.Error = phaseCtx.Err().Error()
	}
	return result
}

const chartPaintedJS = `() => {
	const canvases = Array.from(document.querySelectorAll("canvas"));
	if (canvases.length === 0) { return true; }
	return canvases.every((canvas) => {
		const ctx = canvas.getContext("2d");
		if (!ctx || canvas.width === 0 || canvas.height === 0) { return false; }
		const data = ctx.getImageData(0, 0, canvas.width, canvas.height).data;
		for (let i = 3; i < data.length; i += 4) {
			if (data[i] !== 0) { return true; }
		}
		return false;
	});
}`

const imagesSettledJS = `() => Promise.all(
	Array.from(document.images).map((img) => {
		if (img.complete) {
			return Promise.resolve(img.naturalWidth > 0);
		}
		return new Promise((resolve) => {
			img.addEventListener("load", () => resolve(img.naturalWidth > 0), { once: true });
			img.addEventListener("error", () => resolve(false), { once: true });
		});
	})
).then((loaded) => loaded.filter((ok) => !ok).length)`

const layoutReadyJS = `() => {
	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return style.display !== "none" && style.visibility !== "hidden" && rect.width > 0 && rect.height > 0;
	};
	const cards = Array.from(document.querySelectorAll(".summary-card"));
	if (cards.length === 0 || !cards.every(visible)) { return false; }
	const tables = Array.from(document.querySelectorAll("table"));
	if (tables.length === 0 || !tables.every(visible)) { return false; }
	return Array.from(document.querySelectorAll("canvas")).every(visible);
}`

// DefaultWaitPhases builds the standard seven-phase readiness sequence from
// the configured bounds.
func DefaultWaitPhases(cfg *config.Config) []WaitPhase {
	networkIdle := time.Duration(cfg.WaitNetworkIdleSeconds) * time.Second
	docLoad := time.Duration(cfg.WaitDocLoadSeconds) * time.Second
	settle := time.Duration(cfg.WaitSettleMillis) * time.Millisecond
	chartInitial := time.Duration(cfg.WaitChartInitialMillis) * time.Millisecond
	chartInterval := time.Duration(cfg.WaitChartIntervalMillis) * time.Millisecond
	chartBound := chartInitial + chartInterval*time.Duration(cfg.WaitChartMaxPolls) + time.Second
	imageWait := time.Duration(cfg.WaitImageSeconds) * time.Second
	layoutWait := time.Duration(cfg.WaitLayoutSeconds) * time.Second
	finalSettle := time.Duration(cfg.WaitFinalSettleMillis) * time.Millisecond

	return []WaitPhase{
		{
			Name:    "network_idle",
			Timeout: networkIdle,
			Run: func(ctx context.Context, page *rod.Page) error {
				wait := page.Context(ctx).WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
				wait()
				return ctx.Err()
			},
		},
		{
			Name:    "document_load",
			Timeout: docLoad,
			Run: func(ctx context.Context, page *rod.Page) error {
				return page.Context(ctx).WaitLoad()
			},
		},
		{
			Name:    "settle",
			Timeout: settle + time.Second,
			Run:     sleepPhase(settle),
		},
		{
			Name:    "chart_paint",
			Timeout: chartBound,
			Run: func(ctx context.Context, page *rod.Page) error {
				if err := sleepFor(ctx, chartInitial); err != nil {
					return err
				}
				for poll := 0; poll < cfg.WaitChartMaxPolls; poll++ {
					res, err := page.Context(ctx).Eval(chartPaintedJS)
					if err != nil {
						return err
					}
					if res.Value.Bool() {
						return nil
					}
					if err := sleepFor(ctx, chartInterval); err != nil {
						return err
					}
				}
				return fmt.Errorf("chart surface still blank after %d polls", cfg.WaitChartMaxPolls)
			},
		},
		{
			Name:    "image_complete",
			Timeout: imageWait,
			Run: func(ctx context.Context, page *rod.Page) error {
				res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
					JS:           imagesSettledJS,
					ByValue:      true,
					AwaitPromise: true,
				})
				if err != nil {
					return err
				}
				if failed := res.Value.Int(); failed > 0 {
					return fmt.Errorf("%d image(s) failed to load with nonzero dimensions", failed)
				}
				return nil
			},
		},
		{
			Name:    "layout_check",
			Timeout: layoutWait,
			Run: func(ctx context.Context, page *rod.Page) error {
				res, err := page.Context(ctx).Eval(layoutReadyJS)
				if err != nil {
					return err
				}
				if !res.Value.Bool() {
					return fmt.Errorf("summary cards, tables or chart container not visible")
				}
				return nil
			},
		},
		{
			Name:    "final_settle",
			Timeout: finalSettle + time.Second,
			Run:     sleepPhase(finalSettle),
		},
	}
}

func sleepPhase(d time.Duration) func(ctx context.Context, page *rod.Page) error {
	return func(ctx context.Context, _ *rod.Page) error {
		return sleepFor(ctx, d)
	}
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
