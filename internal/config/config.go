package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/blues/cfledger/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Task     TaskConfig     `mapstructure:"task"`
	Event    EventConfig    `mapstructure:"event"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // 是否启用展示镜像库
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// ChainConfig 链上出款配置，未启用时使用内存钱包
type ChainConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ChainType  string `mapstructure:"chain_type"`  // 链类型 (ethereum, polygon, etc.)
	ChainId    int64  `mapstructure:"chain_id"`    // 链ID
	RpcUrl     string `mapstructure:"rpc_url"`     // RPC节点URL
	PrivateKey string `mapstructure:"private_key"` // 托管账户私钥
	GasLimit   uint64 `mapstructure:"gas_limit"`   // 单笔转账 gas 上限

	ConfirmTimeout int `mapstructure:"confirm_timeout"` // 出款等待回执的秒数，超时后转入对账
}

// LedgerConfig 账本配置
type LedgerConfig struct {
	FeeBps      uint32 `mapstructure:"fee_bps"`      // 平台手续费，万分比
	FeeReceiver string `mapstructure:"fee_receiver"` // 手续费收款地址
}

// WalletConfig 内存钱包配置，仅在未启用链上出款时使用
type WalletConfig struct {
	Balances map[string]string `mapstructure:"balances"` // 地址 -> 初始余额 (wei)
}

// InitialBalances 解析初始余额
func (w WalletConfig) InitialBalances() (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(w.Balances))
	for addr, amount := range w.Balances {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("wallet.balances: invalid address %q", addr)
		}
		v, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("wallet.balances: invalid amount %q for %s", amount, addr)
		}
		out[common.HexToAddress(addr)] = v
	}
	return out, nil
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
}

// EventConfig 事件分发配置
type EventConfig struct {
	PoolSize int `mapstructure:"pool_size"` // 协程池大小
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Ledger.FeeBps > 10000 {
		return fmt.Errorf("ledger.fee_bps must be between 0 and 10000, got %d", c.Ledger.FeeBps)
	}
	if !common.IsHexAddress(c.Ledger.FeeReceiver) {
		return fmt.Errorf("ledger.fee_receiver is not a valid address: %q", c.Ledger.FeeReceiver)
	}
	if c.Task.Interval <= 0 {
		return errors.New("task.interval must be positive")
	}
	if _, err := c.Wallet.InitialBalances(); err != nil {
		return err
	}
	if c.Chain.Enabled {
		if c.Chain.RpcUrl == "" {
			return errors.New("chain.rpc_url is required when chain is enabled")
		}
		if c.Chain.PrivateKey == "" {
			return errors.New("chain.private_key is required when chain is enabled")
		}
	}
	return nil
}

// FeeReceiverAddress 手续费收款地址
func (c *Config) FeeReceiverAddress() common.Address {
	return common.HexToAddress(c.Ledger.FeeReceiver)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "crowdfunding")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("chain.enabled", false)
	v.SetDefault("chain.chain_type", "ethereum")
	v.SetDefault("chain.gas_limit", 21000)
	v.SetDefault("chain.confirm_timeout", 120)
	v.SetDefault("ledger.fee_bps", 250)
	v.SetDefault("task.interval", 60)
	v.SetDefault("event.pool_size", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// LoadFile 从指定文件加载配置，path 为空时按默认路径查找
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cfledger")
	}

	// 自动读取环境变量，ledger.fee_bps -> LEDGER_FEE_BPS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func Load() *Config {
	config, err := LoadFile("")
	if err != nil {
		logger.Fatal("Unable to load config: %v", err)
	}
	return config
}
