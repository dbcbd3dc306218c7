package processor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/omni/root-bridge-syncer/ethclient"
)

// txSender signs and broadcasts EIP-1559 transactions from a single local key.
type txSender struct {
	client             ethclient.Client
	opts               *bind.TransactOpts
	gasLimitMultiplier float64

	mu sync.Mutex
}

func newTxSender(client ethclient.Client, key *ecdsa.PrivateKey, gasLimitMultiplier float64) (*txSender, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, client.ChainID())
	if err != nil {
		return nil, fmt.Errorf("can't create transactor: %w", err)
	}
	return &txSender{
		client:             client,
		opts:               opts,
		gasLimitMultiplier: gasLimitMultiplier,
	}, nil
}

func (s *txSender) From() common.Address {
	return s.opts.From
}

func (s *txSender) Send(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.opts.From)
	if err != nil {
		return nil, fmt.Errorf("can't get pending nonce: %w", err)
	}
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get head block number: %w", err)
	}
	header, err := s.client.HeaderByNumber(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("can't get head block header: %w", err)
	}
	tip, err := s.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't suggest gas tip cap: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	gas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From:      s.opts.From,
		To:        &to,
		GasFeeCap: feeCap,
		GasTipCap: tip,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("can't estimate gas: %w", err)
	}
	gas = uint64(float64(gas) * s.gasLimitMultiplier)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.client.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := s.opts.Signer(s.opts.From, tx)
	if err != nil {
		return nil, fmt.Errorf("can't sign transaction: %w", err)
	}
	if err = s.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("can't send transaction: %w", err)
	}
	return signed, nil
}
