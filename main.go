package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/experiment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/output"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/stream"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/task"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
	"gopkg.in/yaml.v2"
)

var (
	// 模拟任务名，写入结果库
	job = flag.String("job", "job0", "the name of the simulation task")
	// 运行模式
	// run: 单次模拟；sweep: 到达率扫描；compare: 两种礼仪的配对比较
	mode = flag.String("mode", "run", "run | sweep | compare")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path (empty means built-in defaults)")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// websocket快照推送地址，覆盖output.listen
	listen = flag.String("listen", "", "websocket listening address for live snapshots, e.g. :8080")
	// SQLite结果库路径，覆盖output.db
	dbPath = flag.String("db", "", "SQLite result database path")

	sweepLower     = flag.Float64("sweep.lower", 0.5, "lowest arrival rate of the sweep")
	sweepUpper     = flag.Float64("sweep.upper", 2.0, "highest arrival rate of the sweep")
	sweepIncrement = flag.Float64("sweep.increment", 0.1, "arrival rate increment of the sweep")
	// compare模式下b方的礼仪模式，a方使用配置文件中的设置
	compareMode       = flag.String("compare.mode", config.EtiquetteRandomChoice, "etiquette mode of the second setting in compare mode")
	compareIterations = flag.Int("compare.iterations", 10, "number of paired runs in compare mode")
	parallel          = flag.Int("parallel", 4, "maximum number of simulations running at once in sweep and compare modes")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "pedsim")
)

// loadConfig 读取配置，未出现的字段保留默认值
func loadConfig() config.Config {
	c := config.Default()
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Info("no config specified, using built-in defaults")
		return c
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		log.Panicf("config file load err: %v", err)
	}
	return c
}

func openStore(path string) *output.Store {
	if path == "" {
		return nil
	}
	store, err := output.Open(path)
	if err != nil {
		log.Panicf("open result database err: %v", err)
	}
	return store
}

// serve 启动快照推送服务
func serve(addr string, hub *stream.Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Infof("streaming snapshots on ws://%s/ws", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("snapshot server err: %v", err)
		}
	}()
	return srv
}

func run(c context.Context, cfg config.Config, store *output.Store) {
	t := task.NewContext(*job, cfg)
	if err := t.Init(); err != nil {
		log.Panicf("init err: %v", err)
	}

	observers := make([]task.Observer, 0)
	if cfg.Output.Listen != "" {
		hub := stream.NewHub(t.Environment(), 64)
		srv := serve(cfg.Output.Listen, hub)
		defer func() {
			hub.Close()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdown)
		}()
		observers = append(observers, hub)
	}

	start := time.Now()
	if err := t.Run(c, observers...); err != nil {
		log.Warnf("simulation interrupted at step %d: %v", t.Clock().InternalStep, err)
	}
	log.Infof("simulated %s in %v", t.Clock(), time.Since(start))

	r := t.Report()
	totals := t.Recorder().Totals()
	log.Infof("Average travel time: %.2f ± %.2f s (%d arrivals, %d trimmed, %d discarded)",
		r.Overall.Mean, r.Overall.StdDev, r.Overall.Count, r.Trimmed, totals.Discards)
	for _, d := range r.Directions() {
		s := r.ByDirection[d]
		log.Infof("  %s: %.2f ± %.2f s (%d)", d, s.Mean, s.StdDev, s.Count)
	}
	for _, e := range r.Etiquettes() {
		s := r.ByEtiquette[e]
		log.Infof("  %s: %.2f ± %.2f s (%d)", e, s.Mean, s.StdDev, s.Count)
	}
	log.Infof("Total simulation time: %s s", humanize.FormatFloat("#,###.##", t.Clock().Elapsed()))
	log.Infof("Total pedestrian time: %s s over %s pedestrians",
		humanize.FormatFloat("#,###.##", totals.TravelTimeSum), humanize.Comma(int64(totals.Arrivals)))

	if store != nil {
		id, err := store.SaveContext(t, "")
		if err != nil {
			log.Panicf("save run err: %v", err)
		}
		log.Infof("run saved as %s", id)
	}
}

func sweep(c context.Context, cfg config.Config, store *output.Store) {
	results, err := experiment.SweepRates(c, cfg, *sweepLower, *sweepUpper, *sweepIncrement, *parallel)
	if err != nil {
		log.Panicf("sweep err: %v", err)
	}
	for _, r := range results {
		log.Infof("%.3f: %.2f ± %.2f s (%d arrivals)", r.Rate, r.Report.Overall.Mean, r.Report.Overall.StdDev, r.Report.Overall.Count)
		if store != nil {
			if _, err := store.SaveContext(r.Context, r.ID); err != nil {
				log.Panicf("save run err: %v", err)
			}
		}
	}
}

func compare(c context.Context, cfg config.Config) {
	b := cfg
	b.Etiquette.Mode = *compareMode
	b.Etiquette.Mix = nil
	cmp, err := experiment.Compare(c, cfg, b, *compareIterations, *parallel)
	if err != nil {
		log.Panicf("compare err: %v", err)
	}
	a := cfg.Etiquette.Mode
	if cfg.Etiquette.Mix != nil {
		a = "mix"
	}
	log.Infof("%s won %d times.", a, cmp.AWins)
	log.Infof("%s won %d times.", b.Etiquette.Mode, cmp.BWins)
	log.Infof("%d ties.", cmp.Ties)
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	cfg := loadConfig()
	if *listen != "" {
		cfg.Output.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Output.DB = *dbPath
	}
	log.Infof("%+v", cfg)

	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(cfg.Output.DB)
	if store != nil {
		defer store.Close()
	}

	switch *mode {
	case "run":
		run(c, cfg, store)
	case "sweep":
		sweep(c, cfg, store)
	case "compare":
		compare(c, cfg)
	default:
		log.Panicf("mode must be one of run, sweep, compare, got %q", *mode)
	}
}
