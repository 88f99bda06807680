package container_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/container"
)

type testItem struct {
	container.IncrementalItemBase
	id int
}

func ids(a *container.IncrementalArray[*testItem]) []int {
	return lo.Map(a.Data(), func(x *testItem, _ int) int { return x.id })
}

func TestArrayInit(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	assert.Equal(t, 0, a.Len())
	a.Prepare()
	assert.Equal(t, 0, a.Len())
}

func TestArrayDeferredOperation(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	items := lo.Map([]int{1, 2, 3, 4, 5}, func(id int, _ int) *testItem { return &testItem{id: id} })

	// test: add is deferred
	for _, x := range items {
		a.Add(x)
	}
	assert.Equal(t, 0, a.Len())
	adds, removes := a.Pending()
	assert.Equal(t, 5, adds)
	assert.Equal(t, 0, removes)

	a.Prepare()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(a))
	for i, x := range a.Data() {
		assert.Equal(t, i, x.Index())
	}

	// test: remove keeps order, add appends
	a.Remove(items[1])
	a.Remove(items[3])
	a.Remove(items[3])
	a.Add(&testItem{id: 6})
	assert.Equal(t, 5, a.Len())
	a.Prepare()
	assert.Equal(t, []int{1, 3, 5, 6}, ids(a))
	for i, x := range a.Data() {
		assert.Equal(t, i, x.Index())
	}

	// test: remove everything
	for _, x := range a.Data() {
		a.Remove(x)
	}
	a.Prepare()
	assert.Equal(t, 0, a.Len())
}
