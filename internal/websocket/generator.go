package websocket

import (
	"math/rand/v2"
	"time"
)

// MetricGenerator synthesizes placeholder analytics so dashboards look live
// when no real ingestion source is configured.
type MetricGenerator struct {
	rng       *rand.Rand
	platforms []string
}

// NewMetricGenerator returns a generator over platforms. A nil rng seeds a
// fresh source.
func NewMetricGenerator(rng *rand.Rand, platforms []string) *MetricGenerator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if len(platforms) == 0 {
		platforms = Platforms
	}
	return &MetricGenerator{rng: rng, platforms: platforms}
}

// Next picks a platform and returns a sample with impressions in [1000, 11000),
// engagement in [0, 20) and reach in [5000, 55000).
func (g *MetricGenerator) Next(now time.Time) *AnalyticsUpdate {
	return &AnalyticsUpdate{
		Platform:    g.platforms[g.rng.IntN(len(g.platforms))],
		Impressions: 1000 + g.rng.Int64N(10000),
		Engagement:  g.rng.Float64() * 20,
		Reach:       5000 + g.rng.Int64N(50000),
		Timestamp:   now,
	}
}
