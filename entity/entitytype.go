package entity

import (
	"fmt"

	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
)

// Etiquette 对向避让礼仪
type Etiquette int32

const (
	StayLeft     Etiquette = 0 // 迎面相遇时向自己的左侧避让
	RandomChoice Etiquette = 1 // 每次相遇抛硬币决定避让方向
	StayRight    Etiquette = 2 // 迎面相遇时向自己的右侧避让
)

// Etiquettes 按config.EtiquetteMix.Weights()的顺序排列
var Etiquettes = []Etiquette{StayLeft, RandomChoice, StayRight}

func (e Etiquette) String() string {
	switch e {
	case StayLeft:
		return config.EtiquetteStayLeft
	case RandomChoice:
		return config.EtiquetteRandomChoice
	case StayRight:
		return config.EtiquetteStayRight
	default:
		return fmt.Sprintf("etiquette(%d)", int32(e))
	}
}

// ParseEtiquette 由配置中的名称解析礼仪
func ParseEtiquette(name string) (Etiquette, error) {
	for _, e := range Etiquettes {
		if e.String() == name {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown etiquette %q", name)
}

// Status 行人生命周期状态
type Status int32

const (
	StatusActive  Status = 0 // 在场
	StatusArrived Status = 1 // 到达目标，已计入统计
	StatusRemoved Status = 2 // 异常移除，不计入统计
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusArrived:
		return "arrived"
	case StatusRemoved:
		return "removed"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// DiscardReason 行人被异常移除的原因
type DiscardReason int32

const (
	DiscardNonFinite   DiscardReason = 0 // 位置或速度出现NaN/Inf
	DiscardOutOfBounds DiscardReason = 1 // 未到达目标就离开了环境边界
)

func (r DiscardReason) String() string {
	switch r {
	case DiscardNonFinite:
		return "non_finite"
	case DiscardOutOfBounds:
		return "out_of_bounds"
	default:
		return fmt.Sprintf("discard(%d)", int32(r))
	}
}
