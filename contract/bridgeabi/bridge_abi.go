package bridgeabi

//nolint:golint
import (
	_ "embed"

	"github.com/omni/root-bridge-syncer/contract/abi"
)

//go:embed world_id.json
var worldIDJSONABI string

//go:embed l2_world_id.json
var l2WorldIDJSONABI string

//go:embed state_bridge.json
var stateBridgeJSONABI string

const (
	TreeChanged    = "event TreeChanged(uint256 indexed preRoot, uint8 indexed kind, uint256 indexed postRoot)"
	RootAdded      = "event RootAdded(uint256 root, uint128 timestamp)"
	RootPropagated = "event RootPropagated(uint256 root)"
)

var (
	WorldIDABI     = abi.MustReadABI(worldIDJSONABI)
	L2WorldIDABI   = abi.MustReadABI(l2WorldIDJSONABI)
	StateBridgeABI = abi.MustReadABI(stateBridgeJSONABI)

	RootPropagatedEventSignature = StateBridgeABI.Events["RootPropagated"].ID
)
