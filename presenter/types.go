package presenter

import (
	"time"

	"github.com/omni/root-bridge-syncer/entity"
)

type ServiceStatusResponse struct {
	Status                entity.BridgeStatus `json:"status"`
	LastSynced            *time.Time          `json:"lastSynced"`
	LastTransactionStatus *entity.TxStatus    `json:"lastTransactionStatus,omitempty"`
}

type TxInfo struct {
	TransactionID entity.TxID     `json:"transactionId"`
	Status        entity.TxStatus `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
	Link          string          `json:"link"`
}

type TransactionsResponse struct {
	Transactions []*TxInfo `json:"transactions"`
}
