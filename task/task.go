package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tsinghua-fib-lab/pedsim-etiquette/clock"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/pedestrian"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/stats"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/input"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/randengine"
)

var (
	ErrNotRunning         = errors.New("simulation is not running")
	ErrStopped            = errors.New("simulation is stopped")
	ErrAlreadyInitialized = errors.New("simulation is already initialized")
)

// State 模拟状态
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Snapshot 每步结束后对外发布的只读快照
type Snapshot struct {
	Step int32   // 已完成的步数（结束时的时钟步）
	T    float64 // 当前时刻（秒）

	Agents []entity.AgentView // 在场行人（按ID升序）

	Spawned   int // 本步生成人数
	Arrived   int // 本步到达人数
	Discarded int // 本步异常移除人数

	Counts entity.PopulationCounts // 累计数量
	Totals stats.Totals            // 累计统计
}

// Observer 快照观察者（渲染、推送等）
// 说明：在两步之间同步调用，实现不应长时间阻塞
type Observer interface {
	OnSnapshot(s Snapshot)
}

// ObserverFunc 函数形式的Observer
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) OnSnapshot(s Snapshot) {
	f(s)
}

// Context 模拟任务上下文
// 功能：包含一次模拟任务的所有变量和状态，替代全局变量
// 说明：
// 1. 独立的Context之间没有共享的可变状态，可以并行运行
// 2. Step与Run只能在一个goroutine中调用；Pause、Resume、Stop可以从其他goroutine调用
type Context struct {
	// 任务名
	job string
	// 原始配置
	config config.Config

	// 时钟
	clock *clock.Clock
	// 环境
	environment *environment.Environment
	// 随机数引擎
	engine *randengine.Engine
	// 运行时配置
	runtimeConfig *config.RuntimeConfig

	// 行人管理器
	pedestrianManager *pedestrian.Manager
	// 统计
	recorder *stats.Recorder

	// 用于初始化的输入
	initRes *input.Input

	mu       sync.Mutex
	state    State
	wake     chan struct{} // 状态变化时唤醒暂停中的Run
	snapshot Snapshot      // 最近一次发布的快照
}

// NewContext 创建模拟任务上下文
// 参数：job-任务名称，c-配置对象
// 返回：处于Uninitialized状态的Context，需要调用Init
func NewContext(job string, c config.Config) *Context {
	return &Context{
		job:    job,
		config: c,
		state:  StateUninitialized,
		wake:   make(chan struct{}, 1),
	}
}

func (ctx *Context) Job() string {
	return ctx.job
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Environment() *environment.Environment {
	return ctx.environment
}

func (ctx *Context) Engine() *randengine.Engine {
	return ctx.engine
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) PedestrianManager() entity.IPedestrianManager {
	return ctx.pedestrianManager
}

func (ctx *Context) Recorder() *stats.Recorder {
	return ctx.recorder
}

// Seed 本次模拟实际使用的随机数种子
func (ctx *Context) Seed() uint64 {
	return ctx.engine.Seed()
}

// Init 初始化
// 功能：加载环境、校验配置、创建各模块，状态变为Running
// 返回：配置或环境不合法时返回包装了*config.ConfigurationError的错误，模拟不会开始
// 算法说明：
// 1. 校验配置并推导运行时参数
// 2. 加载环境（内置场景或描述文件）
// 3. 按种子创建随机数引擎，未设置种子时以当前时间为种子
// 4. 创建时钟、统计、行人管理器
func (ctx *Context) Init() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	switch ctx.state {
	case StateUninitialized:
	case StateStopped:
		return ErrStopped
	default:
		return ErrAlreadyInitialized
	}

	rc, err := config.NewRuntimeConfig(ctx.config)
	if err != nil {
		return fmt.Errorf("task %s: %w", ctx.job, err)
	}
	initRes, err := input.Init(ctx.config)
	if err != nil {
		return fmt.Errorf("task %s: %w", ctx.job, err)
	}
	ctx.runtimeConfig = rc
	ctx.initRes = initRes
	ctx.environment = initRes.Environment

	if seed := ctx.config.Control.Seed; seed != nil {
		ctx.engine = randengine.New(*seed)
	} else {
		ctx.engine = randengine.NewUnseeded()
	}
	ctx.clock = clock.New(ctx.config.Control.Step)
	ctx.recorder = stats.NewRecorder()
	ctx.pedestrianManager = pedestrian.NewManager(ctx, ctx.recorder)

	w, h := ctx.environment.Size()
	log.Infof("Environment: %s (%.1fm x %.1fm, %d walls, %d flows)", ctx.environment.Name, w, h, len(ctx.environment.Walls), len(ctx.environment.Flows))
	log.Infof("Seed: %d", ctx.engine.Seed())
	log.Infof("Steps: [%d, %d) dt=%vs", ctx.clock.START_STEP, ctx.clock.END_STEP, ctx.clock.DT)

	ctx.state = StateRunning
	ctx.snapshot = ctx.buildSnapshot(0, 0, 0)
	return nil
}

// AddAgent 手动放置一个行人，在下一步加入模拟
func (ctx *Context) AddAgent(spec pedestrian.AgentSpec) (int32, error) {
	if err := ctx.checkStarted(); err != nil {
		return 0, err
	}
	return ctx.pedestrianManager.Add(spec)
}

// State 当前状态
func (ctx *Context) State() State {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.state
}

// checkStarted 已初始化且未停止
func (ctx *Context) checkStarted() error {
	switch ctx.State() {
	case StateUninitialized:
		return ErrNotRunning
	case StateStopped:
		return ErrStopped
	}
	return nil
}

// Pause Running -> Paused
func (ctx *Context) Pause() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	switch ctx.state {
	case StateRunning:
		ctx.state = StatePaused
		log.Infof("paused at step %d", ctx.clock.InternalStep)
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return ErrNotRunning
	}
}

// Resume Paused -> Running，已在运行时无操作
func (ctx *Context) Resume() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	switch ctx.state {
	case StatePaused:
		ctx.state = StateRunning
		ctx.notify()
		log.Infof("resumed at step %d", ctx.clock.InternalStep)
		return nil
	case StateRunning:
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return ErrNotRunning
	}
}

// Stop 停止模拟，任何状态均可调用，重复调用无操作
// 说明：正在执行的步会完整结束，Run在步的边界返回
func (ctx *Context) Stop() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.state == StateStopped {
		return
	}
	ctx.state = StateStopped
	ctx.notify()
}

func (ctx *Context) notify() {
	select {
	case ctx.wake <- struct{}{}:
	default:
	}
}

// Snapshot 最近一次发布的快照
func (ctx *Context) Snapshot() Snapshot {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.snapshot
}

// Step 执行一步
// 返回：本步结束后的快照；不在Running状态时返回ErrNotRunning或ErrStopped；
// 已走完配置的步数时状态变为Stopped并返回ErrStopped
func (ctx *Context) Step() (Snapshot, error) {
	ctx.mu.Lock()
	state := ctx.state
	if state == StateRunning && ctx.clock.Done() {
		ctx.state = StateStopped
		state = StateStopped
		log.Infof("engine complete")
	}
	ctx.mu.Unlock()
	switch state {
	case StateRunning:
	case StateStopped:
		return Snapshot{}, ErrStopped
	default:
		return Snapshot{}, ErrNotRunning
	}

	s := ctx.step()

	ctx.mu.Lock()
	ctx.snapshot = s
	ctx.mu.Unlock()
	return s, nil
}

// Run 运行直到走完配置的步数、Stop或c被取消
// 功能：每步结束后按顺序把快照交给所有观察者
// 返回：正常结束或Stop时返回nil；c取消时返回c.Err()；未初始化时返回ErrNotRunning
// 说明：停止与取消只在步的边界检查；Paused期间阻塞等待Resume、Stop或取消
func (ctx *Context) Run(c context.Context, observers ...Observer) error {
	if ctx.State() == StateUninitialized {
		return ErrNotRunning
	}
	for {
		if err := c.Err(); err != nil {
			return err
		}
		switch ctx.State() {
		case StateStopped:
			return nil
		case StatePaused:
			select {
			case <-ctx.wake:
			case <-c.Done():
				return c.Err()
			}
			continue
		}
		s, err := ctx.Step()
		if errors.Is(err, ErrStopped) {
			return nil
		}
		if errors.Is(err, ErrNotRunning) {
			// Step检查状态前被暂停
			continue
		}
		for _, o := range observers {
			o.OnSnapshot(s)
		}
	}
}

// Report 统计报告，剔除数量取自output.trim
func (ctx *Context) Report() stats.Report {
	return ctx.recorder.Summarize(ctx.runtimeConfig.All.Output.Trim)
}
