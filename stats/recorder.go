// 行程统计：收集到达与异常移除事件，计算各方向、各礼仪模式下行程时间的均值与方差
package stats

import (
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
)

// ArrivalEvent 到达事件
type ArrivalEvent struct {
	ID          int32
	Direction   environment.Direction
	Etiquette   entity.Etiquette
	SpawnTime   float64 // 生成时刻（秒）
	ArrivalTime float64 // 到达时刻（秒）
	TravelTime  float64 // 行程时间 = 到达时刻 - 生成时刻
	SectionTime float64 // 两条计时线之间的用时，HasSection为false时无意义
	HasSection  bool
}

// DiscardEvent 异常移除事件，不计入行程时间样本
type DiscardEvent struct {
	ID        int32
	Direction environment.Direction
	Etiquette entity.Etiquette
	Reason    entity.DiscardReason
	Time      float64
}

// Collector 统计收集器
// 说明：只在模拟步的维护阶段被调用，实现不应做阻塞IO
type Collector interface {
	RecordArrival(ev ArrivalEvent)
	RecordDiscard(ev DiscardEvent)
}

// Totals 累计统计
type Totals struct {
	Arrivals      int
	Discards      int
	TravelTimeSum float64
}

// Recorder 内存中的统计收集器
// 功能：按发生顺序保存所有事件，并累计到达数与行程时间之和
type Recorder struct {
	arrivals []ArrivalEvent
	discards []DiscardEvent
	totals   Totals
}

func NewRecorder() *Recorder {
	return &Recorder{
		arrivals: make([]ArrivalEvent, 0),
		discards: make([]DiscardEvent, 0),
	}
}

func (r *Recorder) RecordArrival(ev ArrivalEvent) {
	r.arrivals = append(r.arrivals, ev)
	r.totals.Arrivals++
	r.totals.TravelTimeSum += ev.TravelTime
}

func (r *Recorder) RecordDiscard(ev DiscardEvent) {
	r.discards = append(r.discards, ev)
	r.totals.Discards++
}

// Arrivals 按到达顺序返回到达事件的副本
func (r *Recorder) Arrivals() []ArrivalEvent {
	return append([]ArrivalEvent(nil), r.arrivals...)
}

// Discards 按发生顺序返回异常移除事件的副本
func (r *Recorder) Discards() []DiscardEvent {
	return append([]DiscardEvent(nil), r.discards...)
}

func (r *Recorder) Totals() Totals {
	return r.totals
}

// Summarize 汇总
// 参数：trim-剔除最早和最晚到达的各trim人（他们遇到的行人更少，样本有偏）
func (r *Recorder) Summarize(trim int) Report {
	return Summarize(r.arrivals, r.discards, trim)
}
