// Command rpc-quality-client classifies RPC chambers at every monitoring
// checkpoint and publishes the quality reports to MQTT.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/sweeney/rpc-quality-client/internal/client"
	"github.com/sweeney/rpc-quality-client/internal/config"
	"github.com/sweeney/rpc-quality-client/internal/db"
	"github.com/sweeney/rpc-quality-client/internal/dqm"
	"github.com/sweeney/rpc-quality-client/internal/metrics"
	"github.com/sweeney/rpc-quality-client/internal/mqtt"
	"github.com/sweeney/rpc-quality-client/internal/source"
	"github.com/sweeney/rpc-quality-client/internal/status"
	"github.com/sweeney/rpc-quality-client/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML parameter file (defaults when empty)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config)")
	dbPath := flag.String("db", "", "SQLite report database (overrides config)")
	input := flag.String("input", "", "Input histogram dump (overrides config)")
	period := flag.Duration("period", 0, "Checkpoint period (overrides config)")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval (overrides config, 0 disables)")
	offline := flag.Bool("offline", false, "Run in offline mode: fill only at session end")
	online := flag.Bool("online", false, "Run in online mode: fill every prescale-th checkpoint")
	printConfig := flag.Bool("print-config", false, "Print the resolved configuration and exit")

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	overrides := flagOverrides{
		Broker:    *broker,
		HTTPAddr:  *httpAddr,
		DBPath:    *dbPath,
		InputPath: *input,
		Period:    *period,
	}
	if flag.CommandLine.Changed("heartbeat") {
		overrides.Heartbeat = heartbeat
	}
	if flag.CommandLine.Changed("offline") {
		overrides.Offline = offline
	}
	if flag.CommandLine.Changed("online") {
		off := !*online
		overrides.Offline = &off
	}
	cfg = overrides.apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if *printConfig {
		data, err := cfg.YAML()
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		fmt.Print(string(data))
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// flagOverrides holds command-line values that take precedence over the
// config file. Zero values leave the file setting alone.
type flagOverrides struct {
	Broker    string
	HTTPAddr  string
	DBPath    string
	InputPath string
	Period    time.Duration
	Heartbeat *time.Duration // set when given, zero disables
	Offline   *bool
}

func (o flagOverrides) apply(cfg config.Config) config.Config {
	if o.Broker != "" {
		cfg.Broker = o.Broker
	}
	if o.HTTPAddr != "" {
		cfg.HTTPAddr = o.HTTPAddr
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	if o.InputPath != "" {
		cfg.InputPath = o.InputPath
	}
	if o.Period > 0 {
		cfg.Period = o.Period
	}
	if o.Heartbeat != nil {
		cfg.Heartbeat = *o.Heartbeat
	}
	if o.Offline != nil {
		cfg.Client.OfflineDQM = *o.Offline
	}
	return cfg
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PeriodMs:            cfg.Period.Milliseconds(),
		HeartbeatMs:         cfg.Heartbeat.Milliseconds(),
		Broker:              cfg.Broker,
		HTTPAddr:            cfg.HTTPAddr,
		DBPath:              cfg.DBPath,
		InputPath:           cfg.InputPath,
		PrescaleFactor:      cfg.Client.PrescaleFactor,
		MinimumRPCEvents:    cfg.Client.MinimumRPCEvents,
		NumberOfEndcapDisks: cfg.Client.NumberOfEndcapDisks,
		EnableRPCDqmClient:  cfg.Client.EnableRPCDqmClient,
		OfflineDQM:          cfg.Client.OfflineDQM,
		UseRollInfo:         cfg.Client.UseRollInfo,
	}
}

func run(cfg config.Config) error {
	store := dqm.NewStore()

	// Initialize input reader
	var reader source.Reader
	if cfg.InputPath != "" {
		fr, err := source.NewFileReader(cfg.InputPath)
		if err != nil {
			return fmt.Errorf("init input: %w", err)
		}
		reader = fr
		defer fr.Close()
	}

	session := client.OnBeginSession(cfg.Client, store, time.Now)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	tracker.SetSession(session.ID())

	// Initialize persistence
	var reports reportStore
	if cfg.DBPath != "" {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer database.Close()
		if err := database.RecordSession(session.ID(), time.Now(), cfg.Client); err != nil {
			return fmt.Errorf("record session: %w", err)
		}
		reports = database
	}

	// Initialize MQTT. The reconnect hook needs the publisher, which is
	// assigned before the first connection can complete.
	var publisher *mqtt.RealPublisher
	publisher = mqtt.NewRealPublisher(mqtt.Options{
		Broker: cfg.Broker,
		OnReconnect: func() {
			tracker.SetMQTTConnected(true)
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  snap.Now,
				Event:      mqtt.EventReconnected,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, mqtt.EventReconnected, ""),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish reconnected event: %v", err)
			}
		},
	})
	defer publisher.Close()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: session=%s period=%v broker=%s heartbeat=%v offline=%v",
		session.ID(), cfg.Period, cfg.Broker, cfg.Heartbeat, cfg.Client.OfflineDQM)

	ticker := time.NewTicker(cfg.Period)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(reader, store, session, publisher, publisher, tracker, reports, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// reportStore persists fill reports.
type reportStore interface {
	RecordReport(rep *client.Report) (int64, error)
}

func runLoop(reader source.Reader, store source.Store, session *client.Session, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, reports reportStore, heartbeatInterval time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := newHeartbeat(heartbeatInterval, now())

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			loadInputs(reader, store)
			rep, skip := session.OnSessionEnd()
			handleReport(rep, skip, session, publisher, tracker, reports)

			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     mqtt.EventShutdown,
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, mqtt.EventShutdown, signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			loadInputs(reader, store)

			rep, skip := session.OnPeriodBoundary()
			handleReport(rep, skip, session, publisher, tracker, reports)

			if hb.due(t) {
				log.Printf("heartbeat: uptime=%v checkpoints=%d fills=%d", hb.uptime(t), session.Counter(), session.Fills())

				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     mqtt.EventHeartbeat,
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, mqtt.EventHeartbeat, "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

// loadErrorLog limits input error logging while a producer is down.
var loadErrorLog = rate.Sometimes{First: 3, Interval: 10 * time.Minute}

// loadInputs refreshes the input histograms. A failed load keeps the
// previous contents, so the checkpoint still runs.
func loadInputs(reader source.Reader, store source.Store) {
	if reader == nil {
		return
	}
	if err := reader.Load(store); err != nil {
		loadErrorLog.Do(func() {
			log.Printf("input load error: %v", err)
		})
	}
}

// handleReport records the outcome of one checkpoint and, for fills,
// publishes and stores the report.
func handleReport(rep *client.Report, skip client.SkipReason, session *client.Session, publisher mqtt.Publisher, tracker *status.Tracker, reports reportStore) {
	metrics.RecordCheckpoint(rep, skip)
	if tracker != nil {
		tracker.RecordCheckpoint(session.Booked(), rep, skip)
	}
	if rep == nil {
		return
	}

	log.Printf("report: checkpoint=%d final=%v chambers=%d not_good=%d",
		rep.Checkpoint, rep.Final, rep.Total(), len(rep.BadChambers))
	if err := publisher.PublishReport(rep); err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}
	if reports != nil {
		if _, err := reports.RecordReport(rep); err != nil {
			log.Printf("db error: %v", err)
		}
	}
}

// heartbeat tracks when the next periodic status event is due.
type heartbeat struct {
	interval time.Duration
	start    time.Time
	last     time.Time
}

func newHeartbeat(interval time.Duration, start time.Time) *heartbeat {
	return &heartbeat{interval: interval, start: start, last: start}
}

// due reports whether the interval has elapsed since the last heartbeat
// (or startup) and, if so, restarts the interval at now. A non-positive
// interval disables heartbeats.
func (h *heartbeat) due(now time.Time) bool {
	if h.interval <= 0 {
		return false
	}
	if now.Sub(h.last) < h.interval {
		return false
	}
	h.last = now
	return true
}

func (h *heartbeat) uptime(now time.Time) time.Duration {
	return now.Sub(h.start)
}
