package config

// Package config provides a reusable loader for node configuration files
// and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.2.0

import (
	"fmt"

	"github.com/spf13/viper"

	"btcb/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the unified node configuration, spec §6's Node Config table.
type Config struct {
	Network struct {
		Discriminator                string   `mapstructure:"discriminator" json:"discriminator"`
		PeeringPort                  int      `mapstructure:"peering_port" json:"peering_port"`
		ListenAddr                   string   `mapstructure:"listen_addr" json:"listen_addr"`
		WorkPeers                    []string `mapstructure:"work_peers" json:"work_peers"`
		PreconfiguredPeers           []string `mapstructure:"preconfigured_peers" json:"preconfigured_peers"`
		PreconfiguredRepresentatives []string `mapstructure:"preconfigured_representatives" json:"preconfigured_representatives"`
		AllowLocalPeers              bool     `mapstructure:"allow_local_peers" json:"allow_local_peers"`
	} `mapstructure:"network" json:"network"`

	Bootstrap struct {
		FractionNumerator int64 `mapstructure:"bootstrap_fraction_numerator" json:"bootstrap_fraction_numerator"`
		Connections       int   `mapstructure:"bootstrap_connections" json:"bootstrap_connections"`
		ConnectionsMax    int   `mapstructure:"bootstrap_connections_max" json:"bootstrap_connections_max"`
	} `mapstructure:"bootstrap" json:"bootstrap"`

	Node struct {
		ReceiveMinimum               string `mapstructure:"receive_minimum" json:"receive_minimum"`
		OnlineWeightMinimum          string `mapstructure:"online_weight_minimum" json:"online_weight_minimum"`
		OnlineWeightQuorum           int    `mapstructure:"online_weight_quorum" json:"online_weight_quorum"`
		PasswordFanout               int    `mapstructure:"password_fanout" json:"password_fanout"`
		IOThreads                    int    `mapstructure:"io_threads" json:"io_threads"`
		NetworkThreads               int    `mapstructure:"network_threads" json:"network_threads"`
		WorkThreads                  int    `mapstructure:"work_threads" json:"work_threads"`
		EnableVoting                 bool   `mapstructure:"enable_voting" json:"enable_voting"`
		BlockProcessorBatchMaxTimeMS int    `mapstructure:"block_processor_batch_max_time_ms" json:"block_processor_batch_max_time_ms"`
	} `mapstructure:"node" json:"node"`

	Callback struct {
		Address string `mapstructure:"callback_address" json:"callback_address"`
		Port    int    `mapstructure:"callback_port" json:"callback_port"`
		Target  string `mapstructure:"callback_target" json:"callback_target"`
	} `mapstructure:"callback" json:"callback"`

	Epoch struct {
		BlockLink   string `mapstructure:"epoch_block_link" json:"epoch_block_link"`
		BlockSigner string `mapstructure:"epoch_block_signer" json:"epoch_block_signer"`
	} `mapstructure:"epoch" json:"epoch"`

	Flags struct {
		DisableBackup            bool `mapstructure:"disable_backup" json:"disable_backup"`
		DisableLazyBootstrap     bool `mapstructure:"disable_lazy_bootstrap" json:"disable_lazy_bootstrap"`
		DisableLegacyBootstrap   bool `mapstructure:"disable_legacy_bootstrap" json:"disable_legacy_bootstrap"`
		DisableBootstrapListener bool `mapstructure:"disable_bootstrap_listener" json:"disable_bootstrap_listener"`
	} `mapstructure:"flags" json:"flags"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is
// loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	setDefaults()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the BTCB_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("BTCB_ENV", ""))
}

// setDefaults seeds every Node Config field spec §6 gives a default value
// for, so a node can start with no config file present at all (test
// network use).
func setDefaults() {
	viper.SetDefault("network.discriminator", "A")
	viper.SetDefault("network.peering_port", 7075)
	viper.SetDefault("network.listen_addr", "/ip4/0.0.0.0/tcp/7075")
	viper.SetDefault("network.allow_local_peers", true)

	viper.SetDefault("bootstrap.bootstrap_fraction_numerator", 16)
	viper.SetDefault("bootstrap.bootstrap_connections", 4)
	viper.SetDefault("bootstrap.bootstrap_connections_max", 64)

	viper.SetDefault("node.receive_minimum", "1000000000000000000000000")
	viper.SetDefault("node.online_weight_minimum", "60000000000000000000000000000000")
	viper.SetDefault("node.online_weight_quorum", 67)
	viper.SetDefault("node.password_fanout", 1024)
	viper.SetDefault("node.io_threads", 4)
	viper.SetDefault("node.network_threads", 4)
	viper.SetDefault("node.work_threads", 4)
	viper.SetDefault("node.enable_voting", false)
	viper.SetDefault("node.block_processor_batch_max_time_ms", 250)

	viper.SetDefault("callback.port", 0)

	viper.SetDefault("storage.db_path", "data.ldb")
	viper.SetDefault("logging.level", "info")
}
