package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/omni/root-bridge-syncer/config"
	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/ethclient"
	"github.com/omni/root-bridge-syncer/logging"
	"github.com/omni/root-bridge-syncer/processor"
	"github.com/omni/root-bridge-syncer/repository"
	"github.com/omni/root-bridge-syncer/store"
)

var (
	configPath = flag.String("config", "config.yml", "path to the config file")
	limit      = flag.Uint64("limit", 5, "number of latest transactions to show")
	skipDB     = flag.Bool("skipDb", false, "do not read the persisted service status")
)

func main() {
	flag.Parse()

	logger := logging.New()

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	reg := prometheus.NewRegistry()
	ethMetrics := ethclient.NewMetrics(reg)
	l1Client, err := ethclient.NewClient(cfg.L1.RPC.Host, cfg.L1.RPC.Timeout, cfg.L1.ChainID, ethMetrics)
	if err != nil {
		logger.WithError(err).Fatal("can't dial l1 rpc client")
	}
	l2Client, err := ethclient.NewClient(cfg.L2.RPC.Host, cfg.L2.RPC.Timeout, cfg.L2.ChainID, ethMetrics)
	if err != nil {
		logger.WithError(err).Fatal("can't dial l2 rpc client")
	}

	proc, err := processor.NewBridgeProcessor(ctx, logger, cfg.Bridge, l1Client, l2Client, nil)
	if err != nil {
		logger.WithError(err).Fatal("can't initialize bridge processor")
	}

	l1Root, err := proc.L1LatestRoot(ctx)
	if err != nil {
		logger.WithError(err).Fatal("can't get l1 root")
	}
	l2Root, err := proc.L2LatestRoot(ctx)
	if err != nil {
		logger.WithError(err).Fatal("can't get l2 root")
	}
	mined, err := proc.IsRootMined(ctx, l1Root)
	if err != nil {
		logger.WithError(err).Fatal("can't check if l1 root reached l2")
	}
	logger.WithFields(logrus.Fields{
		"l1_root":    l1Root.Text(16),
		"l2_root":    l2Root.Text(16),
		"in_sync":    l1Root.Cmp(l2Root) == 0,
		"root_mined": mined,
	}).Info("chain state")

	if *skipDB {
		return
	}

	dbConn, err := db.NewDB(ctx, cfg.DBConfig, db.NewMetrics(reg))
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database")
	}
	defer dbConn.Close()
	if err = dbConn.CheckSchemaVersion(); err != nil {
		logger.WithError(err).Fatal("database schema is not up to date")
	}

	st := store.NewStore(dbConn, repository.NewRepo)
	status, err := st.GetServiceStatus(ctx)
	if err != nil {
		logger.WithError(err).Fatal("can't get service status")
	}
	logger.WithFields(logrus.Fields{
		"status":      status.Status,
		"last_synced": status.LastSynced,
	}).Info("persisted service status")

	txs, err := st.RecentTransactions(ctx, *limit)
	if err != nil {
		logger.WithError(err).Fatal("can't get recent transactions")
	}
	for _, tx := range txs {
		logger.WithFields(logrus.Fields{
			"tx_id":      tx.TransactionID,
			"status":     tx.Status,
			"created_at": tx.CreatedAt,
		}).Info("transaction")
	}

	minedTxs, err := proc.FetchMinedTransactions(ctx)
	if err != nil {
		logger.WithError(err).Fatal("can't fetch mined transactions")
	}
	stale, err := st.PendingTransactionsIn(ctx, minedTxs)
	if err != nil {
		logger.WithError(err).Fatal("can't match mined transactions")
	}
	for _, tx := range stale {
		logger.WithField("tx_id", tx.TransactionID).Warn("transaction is mined but still pending in the database")
	}
}
