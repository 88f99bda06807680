package container

// IIncrementalItem 支持增量更新的元素接口
// 功能：定义支持增量更新的元素必须实现的方法
// 说明：用于增量数组中元素的索引管理，确保元素能够正确跟踪自己在数组中的位置
type IIncrementalItem interface {
	Index() int         // 获取元素的索引
	SetIndex(index int) // 设置元素的索引
}

// IncrementalItemBase 增量元素基类
// 功能：提供增量元素的基础实现，包含索引管理功能
// 说明：可以作为其他结构体的嵌入字段，快速实现IIncrementalItem接口
type IncrementalItemBase struct {
	index int // 元素在数组中的索引
}

// Index 获取元素的索引
func (b *IncrementalItemBase) Index() int {
	return b.index
}

// SetIndex 设置元素的索引
func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组，支持增量维护元素的有序数组
// 功能：扁平存储所有元素，添加与删除延迟到Prepare时统一执行
// 说明：
// 1. 元素保持加入顺序（按ID递增加入即为按ID有序），遍历顺序稳定，保证模拟可复现
// 2. 邻居查询返回的是数组下标而不是元素引用，元素之间不互相持有
// 3. 非线程安全
type IncrementalArray[T IIncrementalItem] struct {
	data   []T          // 主数据数组
	add    []T          // 待添加的元素列表
	remove map[int]bool // 待删除元素的下标
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make(map[int]bool),
	}
}

// Len 获取当前数组长度
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 获取原始数据
// 说明：返回的是当前已应用所有增量操作的数据，调用方不应修改切片本身
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Pending 待添加与待删除的元素数量
func (a *IncrementalArray[T]) Pending() (adds, removes int) {
	return len(a.add), len(a.remove)
}

// Add 增加元素（等到Prepare时才会真正增加，追加在末尾）
func (a *IncrementalArray[T]) Add(value T) {
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
// 说明：同一元素重复删除只生效一次
func (a *IncrementalArray[T]) Remove(value T) {
	a.remove[value.Index()] = true
}

// Prepare 执行增量操作
// 功能：统一执行所有待处理的删除和添加操作
// 算法说明：
// 1. 稳定压缩：跳过被删除的下标，其余元素依次前移，保持相对顺序
// 2. 追加：将待添加元素按加入顺序追加到末尾
// 3. 重新编号：更新所有移动过的元素的索引
// 4. 清空待处理列表
func (a *IncrementalArray[T]) Prepare() {
	if len(a.remove) > 0 {
		kept := a.data[:0]
		for i, x := range a.data {
			if a.remove[i] {
				continue
			}
			kept = append(kept, x)
		}
		// 释放尾部引用
		var zero T
		for i := len(kept); i < len(a.data); i++ {
			a.data[i] = zero
		}
		a.data = kept
	}
	a.data = append(a.data, a.add...)
	for i, x := range a.data {
		x.SetIndex(i)
	}

	a.add = []T{}
	a.remove = make(map[int]bool)
}
