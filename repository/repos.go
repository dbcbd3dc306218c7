package repository

import (
	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/repository/postgres"
)

type Repo struct {
	ServiceStatus entity.ServiceStatusRepo
	Transactions  entity.TransactionsRepo
}

// NewRepo binds all repositories to q, which may be the connection pool or an open transaction.
func NewRepo(q db.Querier) *Repo {
	return &Repo{
		ServiceStatus: postgres.NewServiceStatusRepo("service_status", q),
		Transactions:  postgres.NewTransactionsRepo("transactions", q),
	}
}
