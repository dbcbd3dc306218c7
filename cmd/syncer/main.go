package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/omni/root-bridge-syncer/config"
	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/ethclient"
	"github.com/omni/root-bridge-syncer/logging"
	"github.com/omni/root-bridge-syncer/monitor"
	"github.com/omni/root-bridge-syncer/monitor/alerts"
	"github.com/omni/root-bridge-syncer/presenter"
	"github.com/omni/root-bridge-syncer/processor"
	"github.com/omni/root-bridge-syncer/repository"
	"github.com/omni/root-bridge-syncer/store"
	"github.com/omni/root-bridge-syncer/utils"
)

var configPath = flag.String("config", "config.yml", "path to the config file")

func main() {
	flag.Parse()

	logger := logging.New()

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	dbConn, err := db.ConnectAndVerify(ctx, cfg.DBConfig, db.NewMetrics(reg))
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database and verify schema")
	}
	defer dbConn.Close()

	st := store.NewStore(dbConn, repository.NewRepo)
	created, err := st.InitializeServer(ctx)
	if err != nil {
		logger.WithError(err).Fatal("can't initialize service status")
	}
	if created {
		logger.Info("initialized service status")
	}

	ethMetrics := ethclient.NewMetrics(reg)
	l1Client, err := ethclient.NewClient(cfg.L1.RPC.Host, cfg.L1.RPC.Timeout, cfg.L1.ChainID, ethMetrics)
	if err != nil {
		logger.WithError(err).Fatal("can't dial l1 rpc client")
	}
	l2Client, err := ethclient.NewClient(cfg.L2.RPC.Host, cfg.L2.RPC.Timeout, cfg.L2.ChainID, ethMetrics)
	if err != nil {
		logger.WithError(err).Fatal("can't dial l2 rpc client")
	}

	var key *ecdsa.PrivateKey
	if cfg.Bridge.SignerPrivateKey != "" {
		parsed, signer, err2 := utils.ParsePrivateKey(cfg.Bridge.SignerPrivateKey)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't parse signer private key")
		}
		key = parsed
		logger.WithField("signer", signer).Info("loaded signer key")
	} else {
		logger.Warn("signer key is not configured, roots will not be propagated")
	}

	proc, err := processor.NewBridgeProcessor(ctx, logger.WithField("service", "processor"), cfg.Bridge, l1Client, l2Client, key)
	if err != nil {
		logger.WithError(err).Fatal("can't initialize bridge processor")
	}

	tm := monitor.NewTaskMonitor(logger.WithField("service", "task_monitor"), cfg.Tasks, st, proc, monitor.NewMetrics(reg), cancel)
	tm.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), cfg.Presenter, cfg.L1.ChainID, st, reg)
		g.Go(func() error {
			return pr.Serve(gctx, cfg.Presenter.Host)
		})
	}
	if len(cfg.Alerts) > 0 {
		am, err2 := alerts.NewAlertManager(logger.WithField("service", "alert_manager"), dbConn, cfg.Alerts, cfg.L1.ChainID, reg)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't initialize alert manager")
		}
		g.Go(func() error {
			am.Run(gctx, tm.IsRunning)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Warn("terminating, waiting for running tasks to finish")
		return tm.Shutdown()
	})

	if err = g.Wait(); err != nil {
		logger.WithError(err).Fatal("service terminated with error")
	}
	logger.Info("service terminated")
}

