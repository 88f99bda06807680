// 批量实验：到达率扫描与礼仪配对比较
// 每次模拟是一个独立的task.Context，相互之间没有共享的可变状态，因此可以并行运行
package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/stats"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/task"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/randengine"
	"golang.org/x/sync/errgroup"
)

// RateResult 一个到达率下的模拟结果
type RateResult struct {
	ID      string // 写入结果库时作为run的ID
	Rate    float64
	Seed    uint64
	Report  stats.Report
	Context *task.Context // 已结束的模拟，用于写库
}

// Outcome 一次配对比较的结果
type Outcome struct {
	Seed uint64
	A    stats.Summary
	B    stats.Summary
}

// Winner 平均通行时间更短的一方："a"、"b"，相等时为""
func (o Outcome) Winner() string {
	switch {
	case o.A.Mean < o.B.Mean:
		return "a"
	case o.A.Mean > o.B.Mean:
		return "b"
	default:
		return ""
	}
}

// Comparison 配对比较汇总
type Comparison struct {
	ID       string
	Outcomes []Outcome
	AWins    int
	BWins    int
	Ties     int
}

// Rates 生成[lower, upper]内以increment为间隔的到达率序列
// 说明：每次累加后四舍五入到千分位，避免浮点累积误差漏掉上界
func Rates(lower, upper, increment float64) ([]float64, error) {
	if !(increment > 0) || math.IsInf(increment, 0) {
		return nil, config.NewConfigurationError("sweep.increment", "must be a positive finite number, got %v", increment)
	}
	if !(lower >= 0) || !(upper >= lower) || math.IsInf(upper, 0) {
		return nil, config.NewConfigurationError("sweep.bounds", "need 0 <= lower <= upper, got [%v, %v]", lower, upper)
	}
	rates := make([]float64, 0)
	for r := lower; r <= upper; r = math.Round((r+increment)*1000) / 1000 {
		rates = append(rates, r)
	}
	return rates, nil
}

// baseSeed 取配置中的种子，未设置时随机抽取一个以便结果可复现
func baseSeed(c config.Config) uint64 {
	if c.Control.Seed != nil {
		return *c.Control.Seed
	}
	return randengine.NewUnseeded().Uint64()
}

// runOne 运行一次完整模拟
func runOne(c context.Context, job string, cfg config.Config, seed uint64) (*task.Context, error) {
	cfg.Control.Seed = &seed
	ctx := task.NewContext(job, cfg)
	if err := ctx.Init(); err != nil {
		return nil, err
	}
	if err := ctx.Run(c); err != nil {
		return nil, fmt.Errorf("task %s: %w", job, err)
	}
	return ctx, nil
}

// SweepRates 到达率扫描
// 功能：以同一配置和同一种子在每个到达率下各运行一次模拟
// 参数：base-基础配置，lower/upper/increment-到达率范围与间隔，limit-最大并行数（<=0表示不限）
// 返回：按到达率升序的结果；任何一次失败则取消其余模拟并返回错误
func SweepRates(c context.Context, base config.Config, lower, upper, increment float64, limit int) ([]RateResult, error) {
	rates, err := Rates(lower, upper, increment)
	if err != nil {
		return nil, err
	}
	seed := baseSeed(base)
	results := make([]RateResult, len(rates))

	g, gc := errgroup.WithContext(c)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, rate := range rates {
		g.Go(func() error {
			cfg := base
			cfg.Population.ArrivalRate = rate
			ctx, err := runOne(gc, fmt.Sprintf("sweep-%.3f", rate), cfg, seed)
			if err != nil {
				return err
			}
			r := ctx.Report()
			log.Infof("%.3f: %.2f ± %.2fs (%d arrivals)", rate, r.Overall.Mean, r.Overall.StdDev, r.Overall.Count)
			results[i] = RateResult{ID: uuid.NewString(), Rate: rate, Seed: seed, Report: r, Context: ctx}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Compare 礼仪配对比较
// 功能：a、b两种配置各运行iterations次，第i次两者使用相同的种子，统计平均通行时间的胜负
// 参数：limit-最大并行数（<=0表示不限）
// 说明：第i次的种子为a的种子加i，a未设置种子时随机抽取基准种子
func Compare(c context.Context, a, b config.Config, iterations, limit int) (*Comparison, error) {
	if iterations <= 0 {
		return nil, config.NewConfigurationError("compare.iterations", "must be positive, got %d", iterations)
	}
	seed := baseSeed(a)
	outcomes := make([]Outcome, iterations)

	g, gc := errgroup.WithContext(c)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range iterations {
		s := seed + uint64(i)
		outcomes[i].Seed = s
		for side, cfg := range []config.Config{a, b} {
			g.Go(func() error {
				ctx, err := runOne(gc, fmt.Sprintf("compare-%d-%d", i, side), cfg, s)
				if err != nil {
					return err
				}
				summary := ctx.Report().Overall
				// 每个goroutine只写自己的字段
				if side == 0 {
					outcomes[i].A = summary
				} else {
					outcomes[i].B = summary
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cmp := &Comparison{ID: uuid.NewString(), Outcomes: outcomes}
	for i, o := range outcomes {
		log.Infof("#%d seed=%d a: %.2f ± %.2fs | b: %.2f ± %.2fs", i, o.Seed, o.A.Mean, o.A.StdDev, o.B.Mean, o.B.StdDev)
		switch o.Winner() {
		case "a":
			cmp.AWins++
		case "b":
			cmp.BWins++
		default:
			cmp.Ties++
		}
	}
	return cmp, nil
}
