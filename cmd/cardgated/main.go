package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfields-dev/cardgate/internal/adminapi"
	"github.com/mfields-dev/cardgate/internal/cardgate/service"
	"github.com/mfields-dev/cardgate/internal/cardgate/store"
	"github.com/mfields-dev/cardgate/internal/cardgate/store/fs"
	"github.com/mfields-dev/cardgate/internal/cardgate/store/sqlite"
	"github.com/mfields-dev/cardgate/internal/config"
	"github.com/mfields-dev/cardgate/internal/db"
	"github.com/mfields-dev/cardgate/internal/gate"
	"github.com/mfields-dev/cardgate/internal/metrics"
	"github.com/mfields-dev/cardgate/internal/scan"
	"github.com/mfields-dev/cardgate/internal/web"
)

func main() {
	logger := log.New(os.Stdout, "cardgated ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Records file.  A storage medium that cannot be set up is fatal;
	// a load error is not — the daemon starts with an empty list and
	// keeps memory authoritative.
	storage, err := fs.New(cfg.RecordsPath)
	if err != nil {
		logger.Fatalf("records storage: %v", err)
	}
	records := store.NewRecordStore(storage, cfg.RecordCapacity)
	if n, err := records.Load(ctx); err != nil {
		logger.Printf("records load failed (starting empty): %v", err)
	} else {
		logger.Printf("loaded %d records from %s", n, cfg.RecordsPath)
	}

	// Audit database.
	dbConn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatalf("audit db: %v", err)
	}
	defer dbConn.Close()
	writer := db.NewWorker(dbConn)
	defer writer.Close()
	eventStore := sqlite.NewAccessEventStore(dbConn, writer)

	m := metrics.New(records.Count)
	accessSvc := service.NewAccessService(records, eventStore, logger)

	renderer, err := web.NewRenderer()
	if err != nil {
		logger.Fatalf("renderer: %v", err)
	}

	// Device protocol server.
	gateSrv := gate.NewServer(gate.Dependencies{
		Logger:   logger,
		Records:  records,
		Renderer: renderer,
		Metrics:  m,
		Config: gate.Config{
			Addr:       cfg.DeviceAddr,
			BufferSize: cfg.RequestBufferBytes,
			Timeout:    time.Duration(cfg.ConnTimeoutMs) * time.Millisecond,
		},
	})
	go func() {
		logger.Printf("device protocol listening on %s", cfg.DeviceAddr)
		if err := gateSrv.Start(); err != nil {
			logger.Printf("gate server error: %v", err)
			stop()
		}
	}()

	// Scan loop.  Card reader hardware that is configured but cannot be
	// opened is fatal; an unconfigured reader just disables scanning
	// (useful on a bench without hardware).
	var loop *scan.Loop
	if cfg.ReaderDevice != "" {
		reader, err := scan.NewReader(scan.ReaderConfig{Type: cfg.ReaderType, Device: cfg.ReaderDevice})
		if err != nil {
			logger.Fatalf("card reader: %v", err)
		}
		defer reader.Close()

		var out scan.Output
		if cfg.OutputPath != "" {
			out, err = scan.NewGPIOOutput(cfg.OutputPath)
			if err != nil {
				logger.Fatalf("grant output: %v", err)
			}
		} else {
			out = logOutput{logger}
		}

		loop = scan.NewLoop(scan.Dependencies{
			Logger:  logger,
			Reader:  reader,
			Output:  out,
			Access:  accessSvc,
			Metrics: m,
			Config: scan.Config{
				Interval: time.Duration(cfg.ScanMs) * time.Millisecond,
				Pulse:    time.Duration(cfg.PulseMs) * time.Millisecond,
			},
		})
		go func() {
			if err := loop.Run(ctx); err != nil {
				logger.Printf("scan loop error: %v", err)
				stop()
			}
		}()
	} else {
		logger.Printf("scan loop disabled (no reader device configured)")
	}

	// Background maintenance.
	pruner := service.NewEventPruner(eventStore, service.PrunerConfig{
		RetentionDays: cfg.AuditRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	watcher := service.NewRecordsWatcher(cfg.RecordsPath, records, logger)
	watcher.Start(ctx)
	defer watcher.Stop()

	// Admin/observability listener.
	var adminSrv *adminapi.Server
	if cfg.AdminAddr != "" {
		var lastScan adminapi.LastScanFunc
		if loop != nil {
			lastScan = loop.LastScan
		}
		adminSrv = adminapi.NewServer(adminapi.Dependencies{
			Logger:   logger,
			Addr:     cfg.AdminAddr,
			Records:  records,
			LastScan: lastScan,
			Metrics:  m,
		})
		go func() {
			logger.Printf("admin api listening on %s", cfg.AdminAddr)
			if err := adminSrv.Start(); err != nil {
				logger.Printf("admin server error: %v", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Printf("shutting down")

	_ = gateSrv.Shutdown()
	if adminSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = adminSrv.Shutdown(shutdownCtx)
	}
}

// logOutput stands in for the GPIO line when none is configured.
type logOutput struct {
	logger *log.Logger
}

func (o logOutput) Set(on bool) error {
	o.logger.Printf("output: %v", on)
	return nil
}
