// 随机数引擎，包装了golang.org/x/exp/rand，提供了一些常用的随机数生成方法
// 每个模拟实例只持有一个Engine，所有随机抽样都按固定顺序从同一个序列中取数，
// 固定种子即可完全复现一次模拟
package randengine

import (
	"log"
	"time"

	"github.com/samber/lo"
	"golang.org/x/exp/rand"
)

// Engine 随机数引擎
// 功能：提供可设种子的随机数生成功能，支持多种分布
// 说明：非线程安全，只在模拟步内单线程使用
type Engine struct {
	*rand.Rand        // 底层随机数生成器
	seed       uint64 // 实际使用的种子
}

// New 创建随机数引擎
// 功能：以给定种子初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed)), seed: seed}
}

// NewUnseeded 以当前时间为种子创建随机数引擎
// 说明：未显式指定种子时使用，结果不可复现
func NewUnseeded() *Engine {
	return New(uint64(time.Now().UnixNano()))
}

// Seed 返回引擎使用的种子，便于记录后复现
func (e *Engine) Seed() uint64 {
	return e.seed
}

// DiscreteDistribution 按给定概率分布生成随机数
// 功能：根据权重数组生成离散分布的随机数
// 参数：weight-权重数组，每个元素表示对应索引的概率权重
// 返回：随机生成的索引值（0到len(weight)-1）
// 算法说明：
// 1. 计算总权重：遍历权重数组计算总和
// 2. 生成随机数：在[0, 总权重)范围内生成随机数
// 3. 累积概率：遍历权重数组，累积概率直到超过随机数
// 4. 返回索引：返回第一个累积概率超过随机数的索引
// 5. 错误处理：如果算法异常则panic
func (e *Engine) DiscreteDistribution(weight []float64) int32 {
	random := .0
	for _, w := range weight {
		random += w
	}
	random *= e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return int32(i)
		}
	}
	log.Panicf("randengine: DiscreteDistribution: sum: %f random: %f", sum, random)
	return -1
}

// PTrue 以指定概率返回true
// 功能：伯努利试验
// 参数：p-返回true的概率（0.0到1.0之间）
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Uniform 在[a, b)内均匀采样
func (e *Engine) Uniform(a, b float64) float64 {
	return a + (b-a)*e.Float64()
}

// BoundedNorm 截断的标准正态分布
// 功能：生成标准正态随机数并截断到[-bound, bound]
// 参数：bound-截断界（非负）
// 返回：截断后的随机数
// 说明：用于速度、步态扰动等需要有界方差的抽样
func (e *Engine) BoundedNorm(bound float64) float64 {
	return lo.Clamp(e.NormFloat64(), -bound, bound)
}
