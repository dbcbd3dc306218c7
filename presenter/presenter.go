package presenter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omni/root-bridge-syncer/config"
	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/logging"
	"github.com/omni/root-bridge-syncer/presenter/http/middleware"
	"github.com/omni/root-bridge-syncer/presenter/http/render"
	"github.com/omni/root-bridge-syncer/store"
)

const (
	defaultTransactionsLimit = 20
	maxTransactionsLimit     = 100
	shutdownTimeout          = 5 * time.Second
)

// StatusProvider exposes the read side of the store.
type StatusProvider interface {
	GetServiceStatus(ctx context.Context) (*entity.ServiceStatus, error)
	LastTransactionStatus(ctx context.Context) (*entity.TxStatus, error)
	RecentTransactions(ctx context.Context, limit uint64) ([]*entity.Transaction, error)
}

type Presenter struct {
	logger  logging.Logger
	cfg     *config.PresenterConfig
	chainID string
	store   StatusProvider
	root    chi.Router
}

// NewPresenter builds the http router. Metrics of the presenter itself are
// registered in reg, and /metrics serves everything gathered by reg.
func NewPresenter(logger logging.Logger, cfg *config.PresenterConfig, chainID string, provider StatusProvider, reg *prometheus.Registry) *Presenter {
	p := &Presenter{
		logger:  logger,
		cfg:     cfg,
		chainID: chainID,
		store:   provider,
		root:    chi.NewMux(),
	}

	p.root.Use(chimiddleware.RequestID)
	p.root.Use(middleware.NewLoggerMiddleware(logger))
	p.root.Use(middleware.Recoverer)
	p.root.Use(middleware.NewMetricsMiddleware(middleware.NewMetrics(reg)))
	p.root.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	p.root.Get("/serviceStatus", p.GetServiceStatus)
	p.root.Get("/health", p.Health)
	p.root.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	p.root.With(middleware.GetLimitMiddleware(defaultTransactionsLimit, maxTransactionsLimit)).
		Get("/transactions", p.GetTransactions)
	return p
}

func (p *Presenter) Handler() http.Handler {
	return p.root
}

// Serve listens on addr until ctx is done, then shuts the server down gracefully.
func (p *Presenter) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.root,
		ReadHeaderTimeout: p.cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.WithField("addr", addr).Info("starting presenter service")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("presenter service failed: %w", err)
	case <-ctx.Done():
	}

	p.logger.Info("shutting down presenter service")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("can't shutdown presenter service: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("presenter service failed: %w", err)
	}
	return nil
}

func (p *Presenter) GetServiceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := p.store.GetServiceStatus(ctx)
	if errors.Is(err, store.ErrUninitialized) {
		render.Error(w, r, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		render.Error(w, r, http.StatusInternalServerError, fmt.Errorf("can't get service status: %w", err))
		return
	}
	lastTxStatus, err := p.store.LastTransactionStatus(ctx)
	if err != nil {
		render.Error(w, r, http.StatusInternalServerError, fmt.Errorf("can't get last transaction status: %w", err))
		return
	}

	render.JSON(w, r, http.StatusOK, &ServiceStatusResponse{
		Status:                status.Status,
		LastSynced:            status.LastSynced,
		LastTransactionStatus: lastTxStatus,
	})
}

func (p *Presenter) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (p *Presenter) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txs, err := p.store.RecentTransactions(ctx, middleware.Limit(ctx))
	if err != nil {
		render.Error(w, r, http.StatusInternalServerError, fmt.Errorf("can't get recent transactions: %w", err))
		return
	}

	res := &TransactionsResponse{
		Transactions: make([]*TxInfo, 0, len(txs)),
	}
	for _, tx := range txs {
		res.Transactions = append(res.Transactions, transactionToTxInfo(p.chainID, tx))
	}
	render.JSON(w, r, http.StatusOK, res)
}
