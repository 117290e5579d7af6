package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/db"
	"github.com/BrandonDHaskell/Portunus/unit/internal/door"
	"github.com/BrandonDHaskell/Portunus/unit/internal/healthsrv"
	"github.com/BrandonDHaskell/Portunus/unit/internal/httpapi"
	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/logging"
	"github.com/BrandonDHaskell/Portunus/unit/internal/mode"
	"github.com/BrandonDHaskell/Portunus/unit/internal/mqttcmd"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/propcache"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/unit/internal/reader"
	"github.com/BrandonDHaskell/Portunus/unit/internal/schedule"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
	"github.com/BrandonDHaskell/Portunus/unit/internal/unit"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var errNoOSDPStack = errors.New("no osdp control panel stack linked into this build")

type stores struct {
	props   store.PropertyStore
	cards   store.CardStore
	plans   store.TimePlanStore
	readers store.ReaderStore
	events  store.AccessEventStore
	close   func()
}

func main() {
	configPath := pflag.String("config", "", "path to the YAML config file")
	useMemory := pflag.Bool("memory", false, "keep all state in memory (bench runs)")
	logLevel := pflag.String("log-level", "", "override the configured log level")
	pflag.Parse()

	if err := run(*configPath, *useMemory, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "portunus-unit:", err)
		os.Exit(1)
	}
}

func run(configPath string, useMemory bool, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Version = version
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "portunus-unit")
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, useMemory)
	if err != nil {
		return err
	}
	defer st.close()
	props := propcache.New(st.props, 0)

	if err := markStart(ctx, props, cfg.Version); err != nil {
		logger.Warn("start marker not written", zap.Error(err))
	}

	clk := clock.Real()
	tasks := taskmgr.New(logger.Named("tasks"), cfg.Tasks)

	// GPIO comes from the board support layer; without one the unit runs on
	// the simulated bank with pulled-up inputs.
	bank := hw.NewSimBank()
	for _, pin := range []int{cfg.Pins.ConfigButton, cfg.Pins.OpenButton1, cfg.Pins.OpenButton2} {
		bank.Pin(pin).Set(true)
	}

	doors := []*door.Actuator{
		door.NewActuator(1, bank.Output(cfg.Pins.Relay1), logger),
		door.NewActuator(2, bank.Output(cfg.Pins.Relay2), logger),
	}
	wiegand := reader.NewWiegand(tasks, logger, wiegandPorts(cfg, bank), cfg.Wiegand.Poll)
	osdp := reader.NewOSDP(tasks, logger,
		func([]reader.PD, bool) (reader.Panel, error) { return nil, errNoOSDPStack },
		reader.OSDPOptions{Settle: cfg.OSDP.Settle, BatchSize: cfg.OSDP.BatchSize, MaxReaders: cfg.OSDP.MaxReaders})
	ctl := unit.New(logger, st.readers, doors, wiegand, osdp)

	deps := &mode.Deps{
		Logger:    logger,
		Clock:     clk,
		Tasks:     tasks,
		Unit:      ctl,
		Engine:    schedule.NewEngine(logger, clk, schedule.CzechCalendar{}),
		Props:     props,
		Cards:     st.cards,
		TimePlans: st.plans,
		Events:    st.events,
		LED:       hw.NewStatusLED(bank.Output(cfg.Pins.LEDRed), bank.Output(cfg.Pins.LEDGreen), bank.Output(cfg.Pins.LEDBlue)),

		ConfigButton: hw.NewButton(bank.Input(cfg.Pins.ConfigButton), true),
		OpenButtons: map[int]*hw.Button{
			1: hw.NewButton(bank.Input(cfg.Pins.OpenButton1), true),
			2: hw.NewButton(bank.Input(cfg.Pins.OpenButton2), true),
		},
		MonitorPins: map[int]hw.InputPin{
			1: bank.Input(cfg.Pins.Monitor1),
			2: bank.Input(cfg.Pins.Monitor2),
		},

		Timing:     cfg.Timing,
		Online:     cfg.Online,
		UnitID:     cfg.UnitID,
		ScanSettle: cfg.OSDP.Settle,
		Hooks:      mode.NopHooks{},
	}

	if cfg.MQTT.Broker != "" {
		client := mqttcmd.NewClient(cfg.MQTT, logger)
		defer client.Disconnect()
		go func() {
			if err := client.Connect(ctx, cfg.MQTT.RetryInterval); err != nil {
				logger.Warn("mqtt never connected", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
			}
		}()
		parser := mqttcmd.NewParser(ctl, props, cfg.UnitID, clk, logger)
		deps.Commands = mqttcmd.NewService(client, parser, cfg.MQTT, cfg.UnitID, logger)
	}

	machine := mode.NewMachine(deps)

	var health *healthsrv.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		health = healthsrv.New(machine, logger)
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error("grpc health server", zap.Error(err))
			}
		}()
		go health.Run(ctx, time.Second)
	}

	var api *httpapi.Server
	if cfg.HTTPAddr != "" {
		api = httpapi.NewServer(httpapi.Dependencies{
			Logger:  logger,
			Addr:    cfg.HTTPAddr,
			UnitID:  cfg.UnitID,
			Version: cfg.Version,
			Machine: machine,
			Doors:   ctl,
		})
		go func() {
			logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
			if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", zap.Error(err))
			}
		}()
	}

	logger.Info("unit starting",
		zap.String("unit_id", cfg.UnitID),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.Bool("memory", useMemory))

	runErr := machine.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timing.ShutdownDeadline)
	defer cancel()
	if api != nil {
		_ = api.Shutdown(shutdownCtx)
	}
	if health != nil {
		health.Stop()
	}

	if runErr != nil {
		logger.Error("unit stopped", zap.Error(runErr))
		return runErr
	}
	logger.Info("unit stopped")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, useMemory bool) (stores, error) {
	if useMemory {
		return stores{
			props:   memory.NewPropertyStore(db.DefaultOperatorConfig),
			cards:   memory.NewCardStore(),
			plans:   memory.NewTimePlanStore(),
			readers: memory.NewReaderStore(),
			events:  memory.NewAccessEventStore(),
			close:   func() {},
		}, nil
	}

	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return stores{}, err
	}
	writer := db.NewWorker(sqlDB)
	return stores{
		props:   sqlite.NewPropertyStore(sqlDB, writer),
		cards:   sqlite.NewCardStore(sqlDB, writer),
		plans:   sqlite.NewTimePlanStore(sqlDB, writer),
		readers: sqlite.NewReaderStore(sqlDB, writer),
		events:  sqlite.NewAccessEventStore(sqlDB, writer),
		close:   closeDB(sqlDB, writer),
	}, nil
}

func closeDB(sqlDB *sql.DB, writer *db.Worker) func() {
	return func() {
		writer.Close()
		_ = sqlDB.Close()
	}
}

// markStart records the boot time read by the uptime query and clears any
// reboot request left from the previous run.
func markStart(ctx context.Context, props store.PropertyStore, version string) error {
	return errors.Join(
		props.SetProp(ctx, store.TableRunning, store.PropLastStart, time.Now().Format(store.LastStartLayout)),
		props.SetProp(ctx, store.TableRunning, store.PropVersion, version),
		props.SetProp(ctx, store.TableRunning, store.PropRebootPending, "0"),
	)
}

func wiegandPorts(cfg config.Config, bank hw.Bank) map[int]*reader.WiegandPort {
	pin := func(pins []int, i int) hw.OutputPin {
		if i < len(pins) {
			return bank.Output(pins[i])
		}
		return nil
	}
	ports := make(map[int]*reader.WiegandPort, 2)
	for id := 1; id <= 2; id++ {
		ports[id] = &reader.WiegandPort{
			Source: reader.DeviceSource(cfg.WiegandDevice(id)),
			Red:    pin(cfg.Pins.WiegandRed, id-1),
			Green:  pin(cfg.Pins.WiegandGreen, id-1),
			Buzzer: pin(cfg.Pins.WiegandBuzzer, id-1),
		}
	}
	return ports
}
