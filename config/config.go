package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	defaultRPCTimeout           = 30 * time.Second
	defaultSyncCheckInterval    = 120 * time.Second
	defaultFinalizeInterval     = 600 * time.Second
	defaultRestartBackoff       = 5 * time.Second
	defaultMonitoredTxsCapacity = 100
	defaultTxMaxAttempts        = 5
	defaultTxRetryBackoff       = 100 * time.Millisecond
	defaultMinedLookbackBlocks  = 10000
	defaultMinePollInterval     = 5 * time.Second
	defaultMineTimeout          = 10 * time.Minute
	defaultGasLimitMultiplier   = 1.2
	defaultRequestTimeout       = 10 * time.Second

	// 0.1 ether
	defaultPropagationValue = "100000000000000000"
)

type RPCConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

type ChainConfig struct {
	RPC       *RPCConfig    `yaml:"rpc"`
	ChainID   string        `yaml:"chain_id"`
	BlockTime time.Duration `yaml:"block_time"`
}

type BridgeConfig struct {
	StateBridgeAddress  common.Address `yaml:"state_bridge_address"`
	WorldIDAddress      common.Address `yaml:"world_id_address"`
	L2WorldIDAddress    common.Address `yaml:"l2_world_id_address"`
	SignerPrivateKey    string         `yaml:"signer_private_key"`
	PropagationValue    string         `yaml:"propagation_value"`
	GasLimitMultiplier  float64        `yaml:"gas_limit_multiplier"`
	BlockConfirmations  uint           `yaml:"block_confirmations"`
	MinedLookbackBlocks uint           `yaml:"mined_lookback_blocks"`
	MinePollInterval    time.Duration  `yaml:"mine_poll_interval"`
	MineTimeout         time.Duration  `yaml:"mine_timeout"`

	PropagationValueWei *big.Int `yaml:"-"`
}

type TasksConfig struct {
	SyncCheckInterval    time.Duration `yaml:"sync_check_interval"`
	FinalizeInterval     time.Duration `yaml:"finalize_interval"`
	RestartBackoff       time.Duration `yaml:"restart_backoff"`
	MonitoredTxsCapacity int           `yaml:"monitored_txs_capacity"`
}

type DBConfig struct {
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	DB             string        `yaml:"database"`
	Migrate        bool          `yaml:"migrate"`
	TxMaxAttempts  int           `yaml:"tx_max_attempts"`
	TxRetryBackoff time.Duration `yaml:"tx_retry_backoff"`
}

type PresenterConfig struct {
	Host           string        `yaml:"host"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AlertConfig struct {
	Threshold time.Duration `yaml:"threshold"`
}

type Config struct {
	Chains    map[string]*ChainConfig `yaml:"chains"`
	Bridge    *BridgeConfig           `yaml:"bridge"`
	Tasks     *TasksConfig            `yaml:"tasks"`
	DBConfig  *DBConfig               `yaml:"postgres"`
	Presenter *PresenterConfig        `yaml:"presenter"`
	Alerts    map[string]*AlertConfig `yaml:"alerts"`
	LogLevel  logrus.Level            `yaml:"log_level"`

	L1 *ChainConfig `yaml:"-"`
	L2 *ChainConfig `yaml:"-"`
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file %s: %w", path, err)
	}
	return ReadConfigWithEnv(blob)
}

// ReadConfigWithEnv substitutes ${VAR} references from the environment before parsing.
func ReadConfigWithEnv(blob []byte) (*Config, error) {
	return ReadConfig([]byte(os.ExpandEnv(string(blob))))
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg := &Config{
		LogLevel: logrus.InfoLevel,
	}
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) setDefaults() {
	for _, chain := range cfg.Chains {
		if chain == nil {
			continue
		}
		if chain.RPC == nil {
			chain.RPC = new(RPCConfig)
		}
		if chain.RPC.Timeout == 0 {
			chain.RPC.Timeout = defaultRPCTimeout
		}
	}
	cfg.L1 = cfg.Chains["l1"]
	cfg.L2 = cfg.Chains["l2"]

	if cfg.Bridge == nil {
		cfg.Bridge = new(BridgeConfig)
	}
	if cfg.Bridge.PropagationValue == "" {
		cfg.Bridge.PropagationValue = defaultPropagationValue
	}
	if cfg.Bridge.GasLimitMultiplier == 0 {
		cfg.Bridge.GasLimitMultiplier = defaultGasLimitMultiplier
	}
	if cfg.Bridge.MinedLookbackBlocks == 0 {
		cfg.Bridge.MinedLookbackBlocks = defaultMinedLookbackBlocks
	}
	if cfg.Bridge.MinePollInterval == 0 {
		cfg.Bridge.MinePollInterval = defaultMinePollInterval
	}
	if cfg.Bridge.MineTimeout == 0 {
		cfg.Bridge.MineTimeout = defaultMineTimeout
	}

	if cfg.Tasks == nil {
		cfg.Tasks = new(TasksConfig)
	}
	if cfg.Tasks.SyncCheckInterval == 0 {
		cfg.Tasks.SyncCheckInterval = defaultSyncCheckInterval
	}
	if cfg.Tasks.FinalizeInterval == 0 {
		cfg.Tasks.FinalizeInterval = defaultFinalizeInterval
	}
	if cfg.Tasks.RestartBackoff == 0 {
		cfg.Tasks.RestartBackoff = defaultRestartBackoff
	}
	if cfg.Tasks.MonitoredTxsCapacity == 0 {
		cfg.Tasks.MonitoredTxsCapacity = defaultMonitoredTxsCapacity
	}

	if cfg.DBConfig == nil {
		cfg.DBConfig = new(DBConfig)
	}
	if cfg.DBConfig.TxMaxAttempts == 0 {
		cfg.DBConfig.TxMaxAttempts = defaultTxMaxAttempts
	}
	if cfg.DBConfig.TxRetryBackoff == 0 {
		cfg.DBConfig.TxRetryBackoff = defaultTxRetryBackoff
	}

	if cfg.Presenter != nil && cfg.Presenter.RequestTimeout == 0 {
		cfg.Presenter.RequestTimeout = defaultRequestTimeout
	}
}

func (cfg *Config) validate() error {
	for _, name := range []string{"l1", "l2"} {
		chain := cfg.Chains[name]
		if chain == nil {
			return fmt.Errorf("chain %s is not configured: %w", name, ErrInvalidConfig)
		}
		if chain.RPC.Host == "" {
			return fmt.Errorf("chain %s rpc host is empty: %w", name, ErrInvalidConfig)
		}
		if chain.ChainID == "" {
			return fmt.Errorf("chain %s chain_id is empty: %w", name, ErrInvalidConfig)
		}
	}
	if cfg.Bridge.StateBridgeAddress == (common.Address{}) {
		return fmt.Errorf("bridge state_bridge_address is not set: %w", ErrInvalidConfig)
	}
	value, ok := new(big.Int).SetString(cfg.Bridge.PropagationValue, 10)
	if !ok || value.Sign() < 0 {
		return fmt.Errorf("bridge propagation_value %q is not a valid wei amount: %w", cfg.Bridge.PropagationValue, ErrInvalidConfig)
	}
	cfg.Bridge.PropagationValueWei = value
	if cfg.Bridge.GasLimitMultiplier < 1 {
		return fmt.Errorf("bridge gas_limit_multiplier should be at least 1: %w", ErrInvalidConfig)
	}
	if cfg.Tasks.SyncCheckInterval < 0 || cfg.Tasks.FinalizeInterval < 0 || cfg.Tasks.RestartBackoff < 0 {
		return fmt.Errorf("task intervals should be positive: %w", ErrInvalidConfig)
	}
	if cfg.Tasks.MonitoredTxsCapacity < 1 {
		return fmt.Errorf("tasks monitored_txs_capacity should be at least 1: %w", ErrInvalidConfig)
	}
	if cfg.DBConfig.TxMaxAttempts < 1 {
		return fmt.Errorf("postgres tx_max_attempts should be at least 1: %w", ErrInvalidConfig)
	}
	return nil
}
