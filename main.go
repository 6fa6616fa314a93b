package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/eddielth/sdr-weather/config"
	"github.com/eddielth/sdr-weather/display"
	"github.com/eddielth/sdr-weather/event"
	"github.com/eddielth/sdr-weather/logger"
	"github.com/eddielth/sdr-weather/metrics"
	"github.com/eddielth/sdr-weather/mqtt"
	"github.com/eddielth/sdr-weather/pipeline"
	"github.com/eddielth/sdr-weather/publish"
	"github.com/eddielth/sdr-weather/source"
	"github.com/eddielth/sdr-weather/storage"
	"github.com/eddielth/sdr-weather/throttle"
	"github.com/eddielth/sdr-weather/units"
)

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		_ = logger.Close()
		os.Exit(1)
	}
}

func run() error {
	// 配置文件路径
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the configuration file")
	pflag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitFromConfig(cfg.Logger.Level, cfg.Logger.FilePath, cfg.Logger.MaxSize, cfg.Logger.MaxBackups, cfg.Logger.Console); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	loc, err := cfg.Decoder.TimeLocation()
	if err != nil {
		return err
	}

	// 初始化存储
	storageManager, err := newStorage(cfg, m)
	if err != nil {
		return err
	}
	defer storageManager.Close()

	dispatchers, script, closeDispatchers, err := newDispatchers(cfg)
	defer closeDispatchers()
	if err != nil {
		return err
	}

	src, err := newSource(cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	settings, err := settingsFrom(cfg)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Options{
		Source:     src,
		Decoder:    event.NewDecoder(cfg.Decoder.TimeLayout, loc),
		Throttle:   throttle.NewStore(),
		Storage:    storageManager,
		Dispatcher: dispatchers,
		Printer:    display.NewPrinter(os.Stdout),
		Metrics:    m,
		Settings:   settings,
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr, reg)
		go func() {
			logger.Info("metrics listening on %s", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	// 监听配置文件变化
	err = config.WatchConfig(*configPath, func(newCfg *config.Config) error {
		s, err := settingsFrom(newCfg)
		if err != nil {
			return err
		}
		if err := p.UpdateSettings(s); err != nil {
			return err
		}
		if err := logger.SetLevel(newCfg.Logger.Level); err != nil {
			return err
		}
		if script != nil && newCfg.Script.Enabled {
			if err := script.Reload(newCfg.Script); err != nil {
				logger.Error("failed to reload publish script: %v", err)
			}
		}
		logger.Info("source, storage and mqtt changes take effect after a restart")
		return nil
	})
	if err != nil {
		// 不致命，继续运行
		logger.Warn("failed to watch config file: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("sdr-weather started, waiting for sensor data...")
	err = p.Run(ctx)
	if errors.Is(err, pipeline.ErrSourceTerminated) {
		if exitErr := decoderExit(src, cfg.Source.GracePeriod); exitErr != nil {
			logger.Warn("decoder exited: %v", exitErr)
		}
		logger.Info("decoder output ended, shutting down")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("service stopped")
	return nil
}

func settingsFrom(cfg *config.Config) (pipeline.Settings, error) {
	unit, err := units.ParseUnit(cfg.Display.Unit)
	if err != nil {
		return pipeline.Settings{}, err
	}
	mode, err := display.ParseMode(cfg.Display.Mode)
	if err != nil {
		return pipeline.Settings{}, err
	}
	return pipeline.Settings{Unit: unit, Mode: mode, Interval: cfg.Throttle.IntervalSeconds}, nil
}

func newStorage(cfg *config.Config, m *metrics.Metrics) (*storage.Manager, error) {
	storageManager := storage.NewManager()

	if cfg.Storage.CSV.Enabled {
		files, err := storage.NewFileStorage(cfg.Storage.CSV.Path)
		if err != nil {
			return nil, err
		}
		files.OnDrift(func(string, []string, []string) {
			m.HeaderDrift.Inc()
		})
		storageManager.AddBackend(files)
	} else {
		logger.Info("csv logging disabled")
	}

	if db := cfg.Storage.Database; db.Enabled {
		dbStorage, err := storage.NewDatabaseStorage(db.Type, db.DSN)
		if err != nil {
			_ = storageManager.Close()
			return nil, fmt.Errorf("init database storage: %w", err)
		}
		storageManager.AddBackend(dbStorage)
	}

	return storageManager, nil
}

// newDispatchers returns nil when nothing is notified. The returned close
// function is always usable, also when err is set.
func newDispatchers(cfg *config.Config) (publish.Dispatcher, *publish.Script, func(), error) {
	var multi publish.Multi
	var script *publish.Script
	var publisher *mqtt.Publisher

	closeAll := func() {
		if publisher != nil {
			publisher.Disconnect()
			publisher = nil
		}
	}

	if cfg.MQTT.Enabled {
		var err error
		publisher, err = mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return nil, nil, closeAll, err
		}
		if err := publisher.Connect(); err != nil {
			return nil, nil, closeAll, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		multi = append(multi, publisher)
	}

	if cfg.Script.Enabled {
		var err error
		script, err = publish.NewScript(cfg.Script)
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("load publish script: %w", err)
		}
		multi = append(multi, script)
	}

	if len(multi) == 0 {
		return nil, nil, closeAll, nil
	}
	return multi, script, closeAll, nil
}

func newSource(cfg config.SourceConfig) (source.LineSource, error) {
	switch cfg.Type {
	case config.SourceStdin:
		logger.Info("reading decoder output from stdin")
		return source.NewReaderSource(os.Stdin), nil
	default:
		p, err := source.StartProcess(cfg.Command, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
		}
		if cfg.GracePeriod > 0 {
			p.SetGracePeriod(cfg.GracePeriod)
		}
		return p, nil
	}
}

// decoderExit reports how the decoder process ended. Sources other than a
// process, or a process still running after wait, report nil.
func decoderExit(src source.LineSource, wait time.Duration) error {
	p, ok := src.(*source.ProcessSource)
	if !ok {
		return nil
	}
	if wait <= 0 {
		wait = source.DefaultGracePeriod
	}
	select {
	case <-p.Done():
		return p.ExitErr()
	case <-time.After(wait):
		return nil
	}
}
