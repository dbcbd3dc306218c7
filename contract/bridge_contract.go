package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/root-bridge-syncer/contract/bridgeabi"
	"github.com/omni/root-bridge-syncer/ethclient"
)

var ErrUnexpectedOutput = errors.New("unexpected contract call output")

// RootInfo mirrors the struct returned by WorldID.queryRoot.
type RootInfo struct {
	Root                *big.Int
	SupersededTimestamp *big.Int
	IsValid             bool
}

type StateBridgeContract struct {
	*Contract
}

func NewStateBridgeContract(client ethclient.Client, addr common.Address) *StateBridgeContract {
	return &StateBridgeContract{NewContract(client, addr, bridgeabi.StateBridgeABI)}
}

func (c *StateBridgeContract) Owner(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "owner")
}

func (c *StateBridgeContract) WorldIDAddress(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "worldIDAddress")
}

func (c *StateBridgeContract) L2WorldIDAddress(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "scrollWorldIDAddress")
}

func (c *StateBridgeContract) PropagateRootCalldata() ([]byte, error) {
	return c.Pack("propagateRoot")
}

func (c *Contract) callAddress(ctx context.Context, method string) (common.Address, error) {
	out, err := c.Call(ctx, method)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("%s returned %d values: %w", method, len(out), ErrUnexpectedOutput)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s returned %T: %w", method, out[0], ErrUnexpectedOutput)
	}
	return addr, nil
}

func (c *Contract) callBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values: %w", method, len(out), ErrUnexpectedOutput)
	}
	res, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T: %w", method, out[0], ErrUnexpectedOutput)
	}
	return res, nil
}

type WorldIDContract struct {
	*Contract
}

func NewWorldIDContract(client ethclient.Client, addr common.Address) *WorldIDContract {
	return &WorldIDContract{NewContract(client, addr, bridgeabi.WorldIDABI)}
}

func (c *WorldIDContract) LatestRoot(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "latestRoot")
}

func (c *WorldIDContract) QueryRoot(ctx context.Context, root *big.Int) (*RootInfo, error) {
	out, err := c.Call(ctx, "queryRoot", root)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("queryRoot returned %d values: %w", len(out), ErrUnexpectedOutput)
	}
	info, ok := ethabi.ConvertType(out[0], new(RootInfo)).(*RootInfo)
	if !ok {
		return nil, fmt.Errorf("queryRoot returned %T: %w", out[0], ErrUnexpectedOutput)
	}
	return info, nil
}

// L2WorldIDContract is the root mirror maintained by the bridge on L2.
type L2WorldIDContract struct {
	*Contract
}

func NewL2WorldIDContract(client ethclient.Client, addr common.Address) *L2WorldIDContract {
	return &L2WorldIDContract{NewContract(client, addr, bridgeabi.L2WorldIDABI)}
}

func (c *L2WorldIDContract) LatestRoot(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "latestRoot")
}

// RootHistory returns the timestamp at which root was superseded, or zero if it never was.
func (c *L2WorldIDContract) RootHistory(ctx context.Context, root *big.Int) (*big.Int, error) {
	return c.callBigInt(ctx, "rootHistory", root)
}
