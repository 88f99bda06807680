package stats

import (
	"slices"

	mstats "github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
)

// Summary 一组行程时间样本的统计量（总体方差）
type Summary struct {
	Count    int
	Mean     float64
	Variance float64
	StdDev   float64
	Min      float64
	Max      float64
	Total    float64 // 行程时间之和（人·秒）

	SectionCount  int // 穿过两条计时线的样本数
	SectionMean   float64
	SectionStdDev float64
}

// Group 方向与礼仪的组合
type Group struct {
	Direction environment.Direction
	Etiquette entity.Etiquette
}

// Report 一次模拟的统计报告
type Report struct {
	Overall     Summary
	ByDirection map[environment.Direction]Summary
	ByEtiquette map[entity.Etiquette]Summary
	ByGroup     map[Group]Summary
	Discards    map[entity.DiscardReason]int
	Trimmed     int // 被剔除的样本数
}

// Directions 报告中出现的方向（升序）
func (r Report) Directions() []environment.Direction {
	keys := lo.Keys(r.ByDirection)
	slices.Sort(keys)
	return keys
}

// Etiquettes 报告中出现的礼仪（升序）
func (r Report) Etiquettes() []entity.Etiquette {
	keys := lo.Keys(r.ByEtiquette)
	slices.Sort(keys)
	return keys
}

// Summarize 由事件计算统计报告
// 算法说明：
// 1. 按到达顺序剔除首尾各trim个样本，样本不足时全部剔除
// 2. 对剩余样本整体、按方向、按礼仪、按方向×礼仪分别计算均值、总体方差、标准差
// 3. 异常移除按原因计数
func Summarize(arrivals []ArrivalEvent, discards []DiscardEvent, trim int) Report {
	kept := arrivals
	if trim > 0 {
		if 2*trim >= len(arrivals) {
			kept = nil
		} else {
			kept = arrivals[trim : len(arrivals)-trim]
		}
	}
	r := Report{
		Overall:     summarize(kept),
		ByDirection: make(map[environment.Direction]Summary),
		ByEtiquette: make(map[entity.Etiquette]Summary),
		ByGroup:     make(map[Group]Summary),
		Discards:    make(map[entity.DiscardReason]int),
		Trimmed:     len(arrivals) - len(kept),
	}
	for d, evs := range lo.GroupBy(kept, func(ev ArrivalEvent) environment.Direction { return ev.Direction }) {
		r.ByDirection[d] = summarize(evs)
	}
	for e, evs := range lo.GroupBy(kept, func(ev ArrivalEvent) entity.Etiquette { return ev.Etiquette }) {
		r.ByEtiquette[e] = summarize(evs)
	}
	for g, evs := range lo.GroupBy(kept, func(ev ArrivalEvent) Group { return Group{Direction: ev.Direction, Etiquette: ev.Etiquette} }) {
		r.ByGroup[g] = summarize(evs)
	}
	for _, ev := range discards {
		r.Discards[ev.Reason]++
	}
	return r
}

func summarize(evs []ArrivalEvent) Summary {
	s := Summary{Count: len(evs)}
	if len(evs) == 0 {
		return s
	}
	data := mstats.Float64Data(lo.Map(evs, func(ev ArrivalEvent, _ int) float64 { return ev.TravelTime }))
	// 非空输入时以下函数不会返回错误
	s.Mean, _ = data.Mean()
	s.Variance, _ = data.PopulationVariance()
	s.StdDev, _ = data.StandardDeviationPopulation()
	s.Min, _ = data.Min()
	s.Max, _ = data.Max()
	s.Total, _ = data.Sum()

	sections := lo.FilterMap(evs, func(ev ArrivalEvent, _ int) (float64, bool) { return ev.SectionTime, ev.HasSection })
	s.SectionCount = len(sections)
	if len(sections) > 0 {
		sd := mstats.Float64Data(sections)
		s.SectionMean, _ = sd.Mean()
		s.SectionStdDev, _ = sd.StandardDeviationPopulation()
	}
	return s
}
