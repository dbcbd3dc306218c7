package processor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/omni/root-bridge-syncer/config"
	"github.com/omni/root-bridge-syncer/contract"
	"github.com/omni/root-bridge-syncer/contract/bridgeabi"
	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/ethclient"
	"github.com/omni/root-bridge-syncer/logging"
	"github.com/omni/root-bridge-syncer/utils"
)

const maxBlockRangeSize = 2000

var (
	ErrNoContractCode = errors.New("no contract code deployed at address")
	ErrReadOnly       = errors.New("signer key is not configured")
	ErrMineTimeout    = errors.New("transaction was not mined in time")
)

// BridgeProcessor talks to the WorldID contract on L1, its mirror on L2 and
// the state bridge that pushes roots between them.
type BridgeProcessor struct {
	logger      logging.Logger
	cfg         *config.BridgeConfig
	l1          ethclient.Client
	l2          ethclient.Client
	stateBridge *contract.StateBridgeContract
	worldID     *contract.WorldIDContract
	l2WorldID   *contract.L2WorldIDContract
	sender      *txSender
}

// NewBridgeProcessor resolves contract addresses and verifies they are deployed.
// A nil key yields a read-only processor that refuses to propagate roots.
func NewBridgeProcessor(ctx context.Context, logger logging.Logger, cfg *config.BridgeConfig, l1, l2 ethclient.Client, key *ecdsa.PrivateKey) (*BridgeProcessor, error) {
	p := &BridgeProcessor{
		logger:      logger,
		cfg:         cfg,
		l1:          l1,
		l2:          l2,
		stateBridge: contract.NewStateBridgeContract(l1, cfg.StateBridgeAddress),
	}
	if err := requireCode(ctx, p.stateBridge.Contract); err != nil {
		return nil, err
	}
	owner, err := p.stateBridge.Owner(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get state bridge owner: %w", err)
	}

	worldIDAddress := cfg.WorldIDAddress
	if worldIDAddress == (common.Address{}) {
		if worldIDAddress, err = p.stateBridge.WorldIDAddress(ctx); err != nil {
			return nil, fmt.Errorf("can't get world id address: %w", err)
		}
	}
	l2WorldIDAddress := cfg.L2WorldIDAddress
	if l2WorldIDAddress == (common.Address{}) {
		if l2WorldIDAddress, err = p.stateBridge.L2WorldIDAddress(ctx); err != nil {
			return nil, fmt.Errorf("can't get l2 world id address: %w", err)
		}
	}
	p.worldID = contract.NewWorldIDContract(l1, worldIDAddress)
	p.l2WorldID = contract.NewL2WorldIDContract(l2, l2WorldIDAddress)
	if err = requireCode(ctx, p.worldID.Contract); err != nil {
		return nil, err
	}
	if err = requireCode(ctx, p.l2WorldID.Contract); err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"state_bridge_address": cfg.StateBridgeAddress,
		"owner":                owner,
		"world_id_address":     worldIDAddress,
		"l2_world_id_address":  l2WorldIDAddress,
	}
	if key != nil {
		if p.sender, err = newTxSender(l1, key, cfg.GasLimitMultiplier); err != nil {
			return nil, err
		}
		fields["signer"] = p.sender.From()
	}
	logger.WithFields(fields).Info("connected to the state bridge")
	return p, nil
}

func requireCode(ctx context.Context, c *contract.Contract) error {
	ok, err := c.HasCode(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", c.Address, ErrNoContractCode)
	}
	return nil
}

func (p *BridgeProcessor) L1LatestRoot(ctx context.Context) (*big.Int, error) {
	root, err := p.worldID.LatestRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get l1 latest root: %w", err)
	}
	return root, nil
}

func (p *BridgeProcessor) L2LatestRoot(ctx context.Context) (*big.Int, error) {
	root, err := p.l2WorldID.LatestRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get l2 latest root: %w", err)
	}
	return root, nil
}

// CheckSyncState reports whether the L2 mirror holds the latest L1 root.
// A failed L2 read is reported as out of sync rather than as an error.
func (p *BridgeProcessor) CheckSyncState(ctx context.Context) (bool, error) {
	l2Root, err := p.L2LatestRoot(ctx)
	if err != nil {
		p.logger.WithError(err).Error("failed to get the l2 latest root")
		return false, nil
	}
	l1Root, err := p.L1LatestRoot(ctx)
	if err != nil {
		return false, err
	}
	return l1Root.Cmp(l2Root) == 0, nil
}

func (p *BridgeProcessor) PropagateRoot(ctx context.Context) (entity.TxID, error) {
	if p.sender == nil {
		return "", ErrReadOnly
	}
	data, err := p.stateBridge.PropagateRootCalldata()
	if err != nil {
		return "", err
	}
	tx, err := p.sender.Send(ctx, p.stateBridge.Address, p.cfg.PropagationValueWei, data)
	if err != nil {
		return "", fmt.Errorf("can't propagate root: %w", err)
	}
	p.logger.WithFields(logrus.Fields{
		"tx_hash": tx.Hash(),
		"nonce":   tx.Nonce(),
		"gas":     tx.Gas(),
		"value":   tx.Value(),
	}).Info("sent propagate root transaction")
	return entity.TxID(tx.Hash().Hex()), nil
}

// MineTransaction waits for the transaction receipt and the configured number
// of confirmations, and reports whether the transaction succeeded.
func (p *BridgeProcessor) MineTransaction(ctx context.Context, id entity.TxID) (bool, error) {
	hash := common.HexToHash(string(id))
	deadline := time.Now().Add(p.cfg.MineTimeout)
	for {
		receipt, err := p.l1.TransactionReceiptByHash(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
		case err != nil:
			return false, fmt.Errorf("can't get transaction receipt: %w", err)
		default:
			confirmed, err2 := p.isConfirmed(ctx, receipt)
			if err2 != nil {
				return false, err2
			}
			if confirmed {
				return receipt.Status == types.ReceiptStatusSuccessful, nil
			}
		}

		if time.Now().After(deadline) {
			return false, fmt.Errorf("%s: %w", id, ErrMineTimeout)
		}
		if utils.ContextSleep(ctx, p.cfg.MinePollInterval) == nil {
			return false, ctx.Err()
		}
	}
}

func (p *BridgeProcessor) isConfirmed(ctx context.Context, receipt *types.Receipt) (bool, error) {
	if p.cfg.BlockConfirmations == 0 {
		return true, nil
	}
	head, err := p.l1.BlockNumber(ctx)
	if err != nil {
		return false, fmt.Errorf("can't get head block number: %w", err)
	}
	return uint64(head) >= receipt.BlockNumber.Uint64()+uint64(p.cfg.BlockConfirmations), nil
}

// FetchMinedTransactions returns hashes of the confirmed transactions that
// emitted RootPropagated within the lookback window.
func (p *BridgeProcessor) FetchMinedTransactions(ctx context.Context) ([]entity.TxID, error) {
	head, err := p.l1.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get head block number: %w", err)
	}
	if head < p.cfg.BlockConfirmations {
		return nil, nil
	}
	toBlock := head - p.cfg.BlockConfirmations
	fromBlock := uint(0)
	if toBlock >= p.cfg.MinedLookbackBlocks {
		fromBlock = toBlock - p.cfg.MinedLookbackBlocks + 1
	}

	seen := make(map[common.Hash]bool)
	var res []entity.TxID
	for start := fromBlock; start <= toBlock; start += maxBlockRangeSize {
		end := start + maxBlockRangeSize - 1
		if end > toBlock {
			end = toBlock
		}
		logs, err := p.l1.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(uint64(start)),
			ToBlock:   new(big.Int).SetUint64(uint64(end)),
			Addresses: []common.Address{p.stateBridge.Address},
			Topics:    [][]common.Hash{{bridgeabi.RootPropagatedEventSignature}},
		})
		if err != nil {
			return nil, fmt.Errorf("can't get RootPropagated logs in range %d-%d: %w", start, end, err)
		}
		for i := range logs {
			log := &logs[i]
			if log.Removed || seen[log.TxHash] {
				continue
			}
			seen[log.TxHash] = true
			_, data, err := p.stateBridge.ParseLog(log)
			if err != nil {
				p.logger.WithError(err).WithField("tx_hash", log.TxHash).Warn("can't parse RootPropagated log")
			} else {
				p.logger.WithFields(logrus.Fields{
					"tx_hash":      log.TxHash,
					"block_number": log.BlockNumber,
					"root":         data["root"],
				}).Debug("found propagated root")
			}
			res = append(res, entity.TxID(log.TxHash.Hex()))
		}
	}
	return res, nil
}

// IsRootMined reports whether root is known on L1 and has reached the L2 mirror,
// either as its latest root or as a superseded one.
func (p *BridgeProcessor) IsRootMined(ctx context.Context, root *big.Int) (bool, error) {
	info, err := p.worldID.QueryRoot(ctx, root)
	if err != nil {
		return false, fmt.Errorf("can't query root on l1: %w", err)
	}
	if info.Root == nil || info.Root.Sign() == 0 {
		return false, nil
	}

	ts, err := p.l2WorldID.RootHistory(ctx, root)
	if err != nil {
		return false, fmt.Errorf("can't get root history on l2: %w", err)
	}
	if ts.Sign() != 0 {
		return true, nil
	}
	latest, err := p.L2LatestRoot(ctx)
	if err != nil {
		return false, err
	}
	return latest.Cmp(root) == 0, nil
}
