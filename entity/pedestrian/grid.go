package pedestrian

import (
	"math"
	"slices"

	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
)

type cellKey struct {
	X, Y int
}

// grid 均匀网格邻居索引
// 功能：按作用半径划分网格，邻居查询只检查相邻格子
// 说明：每步在快照上重建，查询结果是快照下标，不持有行人引用
type grid struct {
	size  float64
	cells map[cellKey][]int
	pos   []geometry.Vector
}

func newGrid(size float64) *grid {
	return &grid{size: size, cells: make(map[cellKey][]int)}
}

func (g *grid) key(p geometry.Vector) cellKey {
	return cellKey{X: int(math.Floor(p.X / g.size)), Y: int(math.Floor(p.Y / g.size))}
}

// build 用快照位置重建网格
func (g *grid) build(bodies []Body) {
	clear(g.cells)
	g.pos = g.pos[:0]
	for i, b := range bodies {
		g.pos = append(g.pos, b.Position)
		if !b.Position.IsFinite() {
			continue
		}
		k := g.key(b.Position)
		g.cells[k] = append(g.cells[k], i)
	}
}

// query 距p不超过radius的快照下标（升序，不含self）
func (g *grid) query(p geometry.Vector, radius float64, self int) []int {
	if !p.IsFinite() {
		return nil
	}
	minK, maxK := g.key(p.Sub(geometry.Vector{X: radius, Y: radius})), g.key(p.Add(geometry.Vector{X: radius, Y: radius}))
	res := make([]int, 0, 8)
	for x := minK.X; x <= maxK.X; x++ {
		for y := minK.Y; y <= maxK.Y; y++ {
			for _, i := range g.cells[cellKey{X: x, Y: y}] {
				if i != self && geometry.Distance(p, g.pos[i]) <= radius {
					res = append(res, i)
				}
			}
		}
	}
	slices.Sort(res)
	return res
}
