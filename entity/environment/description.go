package environment

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/geometry"
	"gopkg.in/yaml.v2"
)

// FlowDescription 流向的YAML描述，区域为顶点列表[[x, y], ...]
type FlowDescription struct {
	Direction int32         `yaml:"direction"`
	Entries   [][][]float64 `yaml:"entries"`
	Targets   [][][]float64 `yaml:"targets"`
}

// Description 环境的YAML描述
// 功能：由外部加载器提供的结构化环境描述，墙与计时线为[x1, y1, x2, y2]
type Description struct {
	Name        string            `yaml:"name"`
	Walls       [][]float64       `yaml:"walls"`
	Flows       []FlowDescription `yaml:"flows"`
	TimingLines [][]float64       `yaml:"timing_lines,omitempty"`
	Bounds      []float64         `yaml:"bounds,omitempty"` // [minX, minY, maxX, maxY]
}

// LoadDescription 从YAML文件加载环境描述
func LoadDescription(path string) (*Description, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environment description: %w", err)
	}
	return ParseDescription(file)
}

// ParseDescription 解析YAML环境描述（严格模式，未知字段报错）
func ParseDescription(data []byte) (*Description, error) {
	var d Description
	if err := yaml.UnmarshalStrict(data, &d); err != nil {
		return nil, fmt.Errorf("parse environment description: %w", err)
	}
	return &d, nil
}

// Build 由描述构造并校验环境
// 返回：环境；格式或几何不合法时返回*config.ConfigurationError
func (d *Description) Build() (*Environment, error) {
	walls := make([]Wall, 0, len(d.Walls))
	for i, w := range d.Walls {
		if len(w) != 4 {
			return nil, config.NewConfigurationError(fmt.Sprintf("wall %d", i), "want [x1, y1, x2, y2], got %v", w)
		}
		walls = append(walls, Wall{A: geometry.Vector{X: w[0], Y: w[1]}, B: geometry.Vector{X: w[2], Y: w[3]}})
	}
	timing := make([]TimingLine, 0, len(d.TimingLines))
	for i, l := range d.TimingLines {
		if len(l) != 4 {
			return nil, config.NewConfigurationError(fmt.Sprintf("timing line %d", i), "want [x1, y1, x2, y2], got %v", l)
		}
		timing = append(timing, TimingLine{A: geometry.Vector{X: l[0], Y: l[1]}, B: geometry.Vector{X: l[2], Y: l[3]}})
	}
	flows := make([]Flow, 0, len(d.Flows))
	for fi, fd := range d.Flows {
		entries, err := zones(fmt.Sprintf("flow %d entry", fi), fd.Entries)
		if err != nil {
			return nil, err
		}
		targets, err := zones(fmt.Sprintf("flow %d target", fi), fd.Targets)
		if err != nil {
			return nil, err
		}
		flows = append(flows, Flow{Direction: Direction(fd.Direction), Entries: entries, Targets: targets})
	}
	var bounds *orb.Bound
	if d.Bounds != nil {
		if len(d.Bounds) != 4 {
			return nil, config.NewConfigurationError("bounds", "want [minX, minY, maxX, maxY], got %v", d.Bounds)
		}
		bounds = &orb.Bound{Min: orb.Point{d.Bounds[0], d.Bounds[1]}, Max: orb.Point{d.Bounds[2], d.Bounds[3]}}
	} else if len(walls) == 0 {
		return nil, config.NewConfigurationError("bounds", "bounds are required when there are no walls")
	}
	name := d.Name
	if name == "" {
		name = "custom"
	}
	return New(name, walls, flows, timing, bounds)
}

func zones(object string, polys [][][]float64) ([]Zone, error) {
	res := make([]Zone, 0, len(polys))
	for i, poly := range polys {
		if lo.SomeBy(poly, func(p []float64) bool { return len(p) != 2 }) {
			return nil, config.NewConfigurationError(fmt.Sprintf("%s %d", object, i), "vertices must be [x, y] pairs")
		}
		res = append(res, NewZone(lo.Map(poly, func(p []float64, _ int) geometry.Vector {
			return geometry.Vector{X: p[0], Y: p[1]}
		})...))
	}
	return res, nil
}
