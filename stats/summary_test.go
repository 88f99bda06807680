package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/stats"
)

func arrival(id int32, d environment.Direction, e entity.Etiquette, travel float64) stats.ArrivalEvent {
	return stats.ArrivalEvent{
		ID:          id,
		Direction:   d,
		Etiquette:   e,
		SpawnTime:   float64(id),
		ArrivalTime: float64(id) + travel,
		TravelTime:  travel,
	}
}

func TestRecorder(t *testing.T) {
	r := stats.NewRecorder()
	r.RecordArrival(arrival(0, environment.Forward, entity.StayLeft, 10))
	r.RecordArrival(arrival(1, environment.Backward, entity.StayLeft, 14))
	r.RecordDiscard(stats.DiscardEvent{ID: 2, Reason: entity.DiscardOutOfBounds, Time: 3})

	assert.Equal(t, stats.Totals{Arrivals: 2, Discards: 1, TravelTimeSum: 24}, r.Totals())

	arrivals := r.Arrivals()
	require.Len(t, arrivals, 2)
	arrivals[0].TravelTime = 100
	assert.Equal(t, 10., r.Arrivals()[0].TravelTime)
	assert.Len(t, r.Discards(), 1)
}

func TestSummarize(t *testing.T) {
	arrivals := []stats.ArrivalEvent{
		arrival(0, environment.Forward, entity.StayLeft, 10),
		arrival(1, environment.Forward, entity.RandomChoice, 12),
		arrival(2, environment.Backward, entity.StayLeft, 14),
		arrival(3, environment.Backward, entity.RandomChoice, 16),
	}
	arrivals[0].SectionTime, arrivals[0].HasSection = 8, true
	arrivals[2].SectionTime, arrivals[2].HasSection = 12, true

	discards := []stats.DiscardEvent{
		{ID: 4, Reason: entity.DiscardOutOfBounds},
		{ID: 5, Reason: entity.DiscardOutOfBounds},
		{ID: 6, Reason: entity.DiscardNonFinite},
	}
	r := stats.Summarize(arrivals, discards, 0)

	assert.Equal(t, 4, r.Overall.Count)
	assert.InDelta(t, 13, r.Overall.Mean, 1e-12)
	assert.InDelta(t, 5, r.Overall.Variance, 1e-12)
	assert.InDelta(t, 2.2360679775, r.Overall.StdDev, 1e-9)
	assert.Equal(t, 10., r.Overall.Min)
	assert.Equal(t, 16., r.Overall.Max)
	assert.Equal(t, 52., r.Overall.Total)
	assert.Equal(t, 2, r.Overall.SectionCount)
	assert.InDelta(t, 10, r.Overall.SectionMean, 1e-12)
	assert.InDelta(t, 2, r.Overall.SectionStdDev, 1e-12)

	assert.InDelta(t, 11, r.ByDirection[environment.Forward].Mean, 1e-12)
	assert.InDelta(t, 15, r.ByDirection[environment.Backward].Mean, 1e-12)
	assert.InDelta(t, 12, r.ByEtiquette[entity.StayLeft].Mean, 1e-12)
	assert.InDelta(t, 14, r.ByEtiquette[entity.RandomChoice].Mean, 1e-12)
	assert.Len(t, r.ByGroup, 4)
	for range 20 {
		assert.Equal(t, []environment.Direction{environment.Forward, environment.Backward}, r.Directions())
		assert.Equal(t, []entity.Etiquette{entity.StayLeft, entity.RandomChoice}, r.Etiquettes())
	}
	assert.Equal(t, 1, r.ByGroup[stats.Group{Direction: environment.Backward, Etiquette: entity.RandomChoice}].Count)

	assert.Equal(t, map[entity.DiscardReason]int{entity.DiscardOutOfBounds: 2, entity.DiscardNonFinite: 1}, r.Discards)
	assert.Zero(t, r.Trimmed)
}

func TestSummarizeTrim(t *testing.T) {
	arrivals := make([]stats.ArrivalEvent, 0)
	for i, travel := range []float64{1, 20, 21, 22, 100} {
		arrivals = append(arrivals, arrival(int32(i), environment.Forward, entity.StayLeft, travel))
	}
	r := stats.Summarize(arrivals, nil, 1)
	assert.Equal(t, 3, r.Overall.Count)
	assert.Equal(t, 2, r.Trimmed)
	assert.InDelta(t, 21, r.Overall.Mean, 1e-12)

	// 样本不足时全部剔除
	r = stats.Summarize(arrivals, nil, 3)
	assert.Zero(t, r.Overall.Count)
	assert.Equal(t, 5, r.Trimmed)
	assert.Empty(t, r.ByDirection)
}

func TestSummarizeEmpty(t *testing.T) {
	r := stats.Summarize(nil, nil, 0)
	assert.Equal(t, stats.Summary{}, r.Overall)
	assert.Empty(t, r.ByEtiquette)
	assert.Empty(t, r.Discards)
	assert.Empty(t, r.Directions())
}
