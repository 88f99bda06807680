// 模拟结果存储：SQLite，每次模拟结束后一次性写入，不在模拟步内做IO
package output

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/stats"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/task"
	_ "modernc.org/sqlite"
)

// Run 一次模拟的元信息与汇总结果
type Run struct {
	ID          string  `db:"id"`
	Job         string  `db:"job"`
	Environment string  `db:"environment"`
	Source      string  `db:"source"` // 环境来源，内置场景名或描述文件路径
	Etiquette   string  `db:"etiquette"` // 礼仪模式，设置比例时为"mix"
	ArrivalRate float64 `db:"arrival_rate"`
	Seed        int64   `db:"seed"` // uint64种子按位存储
	Steps       int32   `db:"steps"`
	Interval    float64 `db:"interval"`
	Arrivals    int     `db:"arrivals"`
	Discards    int     `db:"discards"`
	MeanTravel  float64 `db:"mean_travel"`
	StdTravel   float64 `db:"std_travel"`
	CreatedAt   string  `db:"created_at"`
}

type arrivalRow struct {
	RunID       string          `db:"run_id"`
	Seq         int             `db:"seq"`
	AgentID     int32           `db:"agent_id"`
	Direction   int32           `db:"direction"`
	Etiquette   string          `db:"etiquette"`
	SpawnTime   float64         `db:"spawn_time"`
	ArrivalTime float64         `db:"arrival_time"`
	TravelTime  float64         `db:"travel_time"`
	SectionTime sql.NullFloat64 `db:"section_time"`
}

type discardRow struct {
	RunID   string  `db:"run_id"`
	AgentID int32   `db:"agent_id"`
	Reason  string  `db:"reason"`
	Time    float64 `db:"time"`
}

// Store 结果库
type Store struct {
	conn *sqlx.DB
}

// Open 打开或创建结果库
// 参数：path-数据库文件路径，":memory:"表示内存库（仅单连接可见）
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}
	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		environment TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		etiquette TEXT NOT NULL,
		arrival_rate REAL NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		interval REAL NOT NULL,
		arrivals INTEGER NOT NULL,
		discards INTEGER NOT NULL,
		mean_travel REAL NOT NULL,
		std_travel REAL NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS arrivals (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		direction INTEGER NOT NULL,
		etiquette TEXT NOT NULL,
		spawn_time REAL NOT NULL,
		arrival_time REAL NOT NULL,
		travel_time REAL NOT NULL,
		section_time REAL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS discards (
		run_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		reason TEXT NOT NULL,
		time REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_discards_run ON discards(run_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SaveRun 在一个事务中写入一次模拟的元信息、到达与异常移除事件
// 参数：run-元信息，ID为空时自动生成UUID
// 返回：run的ID
func (s *Store) SaveRun(run Run, arrivals []stats.ArrivalEvent, discards []stats.DiscardEvent) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExec(`INSERT INTO runs
		(id, job, environment, source, etiquette, arrival_rate, seed, steps, interval,
		 arrivals, discards, mean_travel, std_travel, created_at)
		VALUES (:id, :job, :environment, :source, :etiquette, :arrival_rate, :seed, :steps, :interval,
		 :arrivals, :discards, :mean_travel, :std_travel, :created_at)`, run); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	arrivalStmt, err := tx.PrepareNamed(`INSERT INTO arrivals
		(run_id, seq, agent_id, direction, etiquette, spawn_time, arrival_time, travel_time, section_time)
		VALUES (:run_id, :seq, :agent_id, :direction, :etiquette, :spawn_time, :arrival_time, :travel_time, :section_time)`)
	if err != nil {
		return "", err
	}
	defer arrivalStmt.Close()
	for i, ev := range arrivals {
		row := arrivalRow{
			RunID:       run.ID,
			Seq:         i,
			AgentID:     ev.ID,
			Direction:   int32(ev.Direction),
			Etiquette:   ev.Etiquette.String(),
			SpawnTime:   ev.SpawnTime,
			ArrivalTime: ev.ArrivalTime,
			TravelTime:  ev.TravelTime,
			SectionTime: sql.NullFloat64{Float64: ev.SectionTime, Valid: ev.HasSection},
		}
		if _, err := arrivalStmt.Exec(row); err != nil {
			return "", fmt.Errorf("insert arrival %d: %w", ev.ID, err)
		}
	}

	discardStmt, err := tx.PrepareNamed(`INSERT INTO discards (run_id, agent_id, reason, time)
		VALUES (:run_id, :agent_id, :reason, :time)`)
	if err != nil {
		return "", err
	}
	defer discardStmt.Close()
	for _, ev := range discards {
		row := discardRow{RunID: run.ID, AgentID: ev.ID, Reason: ev.Reason.String(), Time: ev.Time}
		if _, err := discardStmt.Exec(row); err != nil {
			return "", fmt.Errorf("insert discard %d: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	log.Infof("saved run %s: %d arrivals, %d discards", run.ID, len(arrivals), len(discards))
	return run.ID, nil
}

// SaveContext 保存一次已结束的模拟
// 参数：id-run的ID，为空时自动生成
func (s *Store) SaveContext(ctx *task.Context, id string) (string, error) {
	rc := ctx.RuntimeConfig()
	report := ctx.Report()
	totals := ctx.Recorder().Totals()
	etiquette := rc.All.Etiquette.Mode
	if rc.All.Etiquette.Mix != nil {
		etiquette = "mix"
	}
	run := Run{
		ID:          id,
		Job:         ctx.Job(),
		Environment: ctx.Environment().Name,
		Source:      ctx.GetInput().Source,
		Etiquette:   etiquette,
		ArrivalRate: rc.All.Population.ArrivalRate,
		Seed:        int64(ctx.Seed()),
		Steps:       ctx.Clock().InternalStep - ctx.Clock().START_STEP,
		Interval:    ctx.Clock().DT,
		Arrivals:    totals.Arrivals,
		Discards:    totals.Discards,
		MeanTravel:  report.Overall.Mean,
		StdTravel:   report.Overall.StdDev,
	}
	return s.SaveRun(run, ctx.Recorder().Arrivals(), ctx.Recorder().Discards())
}

// Runs 所有模拟（按创建时间）
func (s *Store) Runs() ([]Run, error) {
	runs := []Run{}
	err := s.conn.Select(&runs, "SELECT * FROM runs ORDER BY created_at, id")
	return runs, err
}

// TravelTimes 某次模拟按到达顺序的行程时间
func (s *Store) TravelTimes(runID string) ([]float64, error) {
	times := []float64{}
	err := s.conn.Select(&times, "SELECT travel_time FROM arrivals WHERE run_id = ? ORDER BY seq", runID)
	return times, err
}

// DiscardCounts 某次模拟按原因统计的异常移除人数
func (s *Store) DiscardCounts(runID string) (map[string]int, error) {
	rows := []struct {
		Reason string `db:"reason"`
		N      int    `db:"n"`
	}{}
	if err := s.conn.Select(&rows, "SELECT reason, COUNT(*) AS n FROM discards WHERE run_id = ? GROUP BY reason", runID); err != nil {
		return nil, err
	}
	res := make(map[string]int, len(rows))
	for _, r := range rows {
		res[r.Reason] = r.N
	}
	return res, nil
}
