package presenter

import (
	"fmt"

	"github.com/omni/root-bridge-syncer/entity"
)

var formats = map[string]string{
	"1":        "https://etherscan.io/tx/%s",
	"5":        "https://goerli.etherscan.io/tx/%s",
	"11155111": "https://sepolia.etherscan.io/tx/%s",
}

func txLink(chainID string, id entity.TxID) string {
	if format, ok := formats[chainID]; ok {
		return fmt.Sprintf(format, id)
	}
	return string(id)
}

func transactionToTxInfo(chainID string, tx *entity.Transaction) *TxInfo {
	return &TxInfo{
		TransactionID: tx.TransactionID,
		Status:        tx.Status,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
		Link:          txLink(chainID, tx.TransactionID),
	}
}
