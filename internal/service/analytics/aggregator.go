package analytics

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FunnelReport is the derived, read-only view of the onboarding funnel.
type FunnelReport struct {
	GeneratedAt time.Time `json:"generated_at"`

	// Started is the number of washers with any onboarding activity.
	Started int `json:"started"`
	// StepCounts is how many washers completed each step.
	StepCounts map[domain.Step]int `json:"step_counts"`
	// DropOff is, per step 1..3, the fraction of washers who completed that
	// step but never completed the next one.
	DropOff map[domain.Step]float64 `json:"drop_off"`

	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
	// MedianTimeToComplete is measured from StartedAt to CompletedAt over
	// fully onboarded washers.
	MedianTimeToComplete time.Duration `json:"median_time_to_complete"`

	// FailureCounts is the number of failed step events per step inside the
	// report window (provider sync errors, mostly).
	FailureCounts map[domain.Step]int `json:"failure_counts"`
}

// Aggregator is the periodic batch job computing funnel, drop-off and error
// metrics from onboarding progress rows and the step event log. It only ever
// reads.
type Aggregator struct {
	progress ports.OnboardingRepository
	events   ports.StepEventRepository
	window   time.Duration
	log      zerolog.Logger

	mu     sync.RWMutex
	latest *FunnelReport
}

// NewAggregator creates the analytics batch job. window bounds how far back
// failure events are counted.
func NewAggregator(
	progress ports.OnboardingRepository,
	events ports.StepEventRepository,
	window time.Duration,
	baseLogger *zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		progress: progress,
		events:   events,
		window:   window,
		log:      baseLogger.With().Str("component", "onboarding_analytics").Logger(),
	}
}

// Run computes a fresh report and keeps it as the latest.
func (a *Aggregator) Run(ctx context.Context) (*FunnelReport, error) {
	rows, err := a.progress.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &FunnelReport{
		GeneratedAt:   now,
		Started:       len(rows),
		StepCounts:    make(map[domain.Step]int),
		DropOff:       make(map[domain.Step]float64),
		FailureCounts: make(map[domain.Step]int),
	}

	var completionTimes []time.Duration
	for _, row := range rows {
		for _, step := range domain.AllSteps {
			if row.HasStep(step) {
				report.StepCounts[step]++
			}
		}
		if row.IsComplete() {
			report.Completed++
			if row.CompletedAt != nil {
				completionTimes = append(completionTimes, row.CompletedAt.Sub(row.StartedAt))
			}
		}
	}

	for i := 0; i < len(domain.AllSteps)-1; i++ {
		step, next := domain.AllSteps[i], domain.AllSteps[i+1]
		if report.StepCounts[step] == 0 {
			continue
		}
		stalled := 0
		for _, row := range rows {
			if row.HasStep(step) && !row.HasStep(next) {
				stalled++
			}
		}
		report.DropOff[step] = float64(stalled) / float64(report.StepCounts[step])
	}

	if report.Started > 0 {
		report.CompletionRate = float64(report.Completed) / float64(report.Started)
	}
	if len(completionTimes) > 0 {
		sort.Slice(completionTimes, func(i, j int) bool { return completionTimes[i] < completionTimes[j] })
		report.MedianTimeToComplete = completionTimes[len(completionTimes)/2]
	}

	failures, err := a.events.ListSince(ctx, now.Add(-a.window))
	if err != nil {
		return nil, err
	}
	for _, event := range failures {
		if event.Outcome == domain.StepOutcomeFailed {
			report.FailureCounts[event.Step]++
		}
	}

	a.mu.Lock()
	a.latest = report
	a.mu.Unlock()

	a.log.Info().
		Int("started", report.Started).
		Int("completed", report.Completed).
		Float64("completion_rate", report.CompletionRate).
		Msg("Onboarding funnel report generated")

	return report, nil
}

// Latest returns the most recent report, or nil before the first run.
func (a *Aggregator) Latest() *FunnelReport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}
