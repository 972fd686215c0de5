package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cuemby/cyclecore/pkg/config"
	"github.com/cuemby/cyclecore/pkg/db"
	"github.com/cuemby/cyclecore/pkg/events"
	"github.com/cuemby/cyclecore/pkg/eventtimer"
	"github.com/cuemby/cyclecore/pkg/handlers"
	"github.com/cuemby/cyclecore/pkg/log"
	"github.com/cuemby/cyclecore/pkg/metrics"
	"github.com/cuemby/cyclecore/pkg/procpool"
	"github.com/cuemby/cyclecore/pkg/reconciler"
	"github.com/cuemby/cyclecore/pkg/status"
	"github.com/cuemby/cyclecore/pkg/taskstate"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cyclecore",
	Short: "cyclecore - the task-event core of a cycling workflow engine",
	Long: `cyclecore tracks one cycling suite's task lifecycle: the status
lattice, action timers, output sets, the message reconciler and the event
handler drivers. Task submission, dependency scheduling and the suite
database manager live outside this binary; cyclecore only sets a changed
flag when something needs attention.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"cyclecore version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./cyclecore-data", "Directory for the bbolt task-event database")
	rootCmd.PersistentFlags().String("global-config", "", "Path to the global config tier YAML file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the event-timer scheduler tick loop and accept task messages",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Duration("tick-interval", time.Second, "Interval between event-timer scheduler ticks")
	serveCmd.Flags().Duration("mail-interval", 60*time.Second, "Mail batching window (spec §4.5)")
	serveCmd.Flags().String("listen", ":9090", "Address to serve /message, /metrics and /healthz on")
	serveCmd.Flags().Int("pool-concurrency", 4, "Concurrent sub-commands the process pool may run at once")
}

// incomingMessage is the wire shape accepted on POST /message.
type incomingMessage struct {
	Identity     string `json:"identity"`    // NAME.CYCLE_POINT
	Name         string `json:"name"`
	CyclePoint   string `json:"cycle_point"`
	SubmitNum    int    `json:"submit_num"`
	HasSubmitNum bool   `json:"has_submit_num"`
	Severity     string `json:"severity"`
	Text         string `json:"text"`
}

// core owns every piece of mutable state touched by the tick loop and the
// message endpoint; both run on the same goroutine (spec §5: single-
// threaded, cooperative), so core itself needs no lock.
type core struct {
	registry *eventtimer.Registry
	rec      *reconciler.Reconciler
	driver   *handlers.Driver
	tasks    map[string]*reconciler.Task
	inbox    chan incomingMessage
}

func (c *core) getOrCreateTask(msg incomingMessage) *reconciler.Task {
	if t, ok := c.tasks[msg.Identity]; ok {
		return t
	}
	t := &reconciler.Task{
		State:      taskstate.New(msg.Identity, status.Waiting),
		Identity:   msg.Identity,
		CyclePoint: msg.CyclePoint,
		Name:       msg.Name,
	}
	c.tasks[msg.Identity] = t
	return t
}

func (c *core) handleMessage(msg incomingMessage) {
	task := c.getOrCreateTask(msg)
	rmsg := reconciler.Message{
		Severity:     msg.Severity,
		Text:         msg.Text,
		IncomingTime: time.Now(),
		SubmitNum:    msg.SubmitNum,
		HasSubmitNum: msg.HasSubmitNum,
	}
	c.rec.ProcessMessage(task, rmsg, func(identity, reason string) {
		log.Logger.Info().Str("task", identity).Str("reason", reason).Msg("poll requested")
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	globalConfigPath, _ := cmd.Flags().GetString("global-config")
	tickInterval, _ := cmd.Flags().GetDuration("tick-interval")
	mailInterval, _ := cmd.Flags().GetDuration("mail-interval")
	listen, _ := cmd.Flags().GetString("listen")
	poolConcurrency, _ := cmd.Flags().GetInt("pool-concurrency")

	adapter, err := db.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening task-event database: %w", err)
	}
	defer adapter.Close()

	globalCfg, err := config.LoadGlobalConfig(globalConfigPath)
	if err != nil {
		return fmt.Errorf("loading global config: %w", err)
	}
	lookup := &config.Lookup{Global: globalCfg}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	registry := eventtimer.NewRegistry(mailInterval)
	registry.SetChangeBroker(broker)

	pool := procpool.New(poolConcurrency)
	defer pool.Stop()

	activity := &handlers.FileActivityLogger{
		JobLogDir: dataDir + "/job-logs",
		SuiteLog:  dataDir + "/suite.log",
	}
	driver := handlers.NewDriver(pool, handlers.SuiteContext{}, adapter, activity)

	localUser := os.Getenv("USER")
	c := &core{
		registry: registry,
		rec:      reconciler.New(registry, lookup, adapter, localUser),
		driver:   driver,
		tasks:    make(map[string]*reconciler.Task),
		inbox:    make(chan incomingMessage, 256),
	}

	collector := metrics.NewCollector(registry)
	collector.Start()
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/message", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var msg incomingMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case c.inbox <- msg:
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "inbox full", http.StatusServiceUnavailable)
		}
	})

	server := &http.Server{Addr: listen, Handler: mux}
	go func() {
		log.Logger.Info().Str("addr", listen).Msg("serving /message, /metrics and /healthz")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Logger.Info().Dur("interval", tickInterval).Msg("starting cooperative core loop")
	for {
		select {
		case msg := <-c.inbox:
			c.handleMessage(msg)
		case now := <-ticker.C:
			registry.ProcessEvents(now, driver)
		}
	}
}
