package config

// Package config provides a reusable loader for CRVM configuration files
// and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/cascoin/crvm/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified CRVM node configuration, mirroring the YAML files
// under cmd/config and spec.md §6's configuration table.
type Config struct {
	Chain struct {
		Unit                uint64 `mapstructure:"unit" json:"unit"`
		ActivationHeightVM  uint32 `mapstructure:"activation_height_vm" json:"activation_height_vm"`
		ActivationHeightWoT uint32 `mapstructure:"activation_height_wot" json:"activation_height_wot"`
	} `mapstructure:"chain" json:"chain"`

	Bonding struct {
		MinBondAmount int64   `mapstructure:"min_bond_amount" json:"min_bond_amount"`
		BondPerPoint  float64 `mapstructure:"bond_per_point" json:"bond_per_point"`
	} `mapstructure:"bonding" json:"bonding"`

	Graph struct {
		MaxTrustPathDepth int   `mapstructure:"max_trust_path_depth" json:"max_trust_path_depth"`
		EdgeWeightFloor   int16 `mapstructure:"edge_weight_floor" json:"edge_weight_floor"`
	} `mapstructure:"graph" json:"graph"`

	HAT struct {
		BehaviorWeight float64 `mapstructure:"behavior_weight" json:"behavior_weight"`
		WotWeight      float64 `mapstructure:"wot_weight" json:"wot_weight"`
		EconomicWeight float64 `mapstructure:"economic_weight" json:"economic_weight"`
		TemporalWeight float64 `mapstructure:"temporal_weight" json:"temporal_weight"`
	} `mapstructure:"hat" json:"hat"`

	VM struct {
		GasPerTxLimit    uint64 `mapstructure:"gas_per_tx_limit" json:"gas_per_tx_limit"`
		GasPerBlockLimit uint64 `mapstructure:"gas_per_block_limit" json:"gas_per_block_limit"`
		CodeSizeLimit    int    `mapstructure:"code_size_limit" json:"code_size_limit"`
		StackSizeLimit   int    `mapstructure:"stack_size_limit" json:"stack_size_limit"`
		CallDepthLimit   int    `mapstructure:"call_depth_limit" json:"call_depth_limit"`
	} `mapstructure:"vm" json:"vm"`

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

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up overrides from process environment variables

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CRVM_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CRVM_ENV", ""))
}

// ToCoreConfig translates the loaded viper-backed Config into the
// core.Config value every subsystem constructor actually consumes.
func (c *Config) ToCoreConfig() CoreConfigFields {
	return CoreConfigFields{
		UNIT:                c.Chain.Unit,
		MinBondAmount:       c.Bonding.MinBondAmount,
		BondPerPoint:        c.Bonding.BondPerPoint,
		MaxTrustPathDepth:   c.Graph.MaxTrustPathDepth,
		EdgeWeightFloor:     c.Graph.EdgeWeightFloor,
		HATWeights:          [4]float64{c.HAT.BehaviorWeight, c.HAT.WotWeight, c.HAT.EconomicWeight, c.HAT.TemporalWeight},
		ActivationHeightVM:  c.Chain.ActivationHeightVM,
		ActivationHeightWoT: c.Chain.ActivationHeightWoT,
		GasPerTxLimit:       c.VM.GasPerTxLimit,
		GasPerBlockLimit:    c.VM.GasPerBlockLimit,
		CodeSizeLimit:       c.VM.CodeSizeLimit,
		StackSizeLimit:      c.VM.StackSizeLimit,
		CallDepthLimit:      c.VM.CallDepthLimit,
	}
}

// CoreConfigFields mirrors core.Config's field set. Kept as a distinct type
// here (rather than importing core) so pkg/config has no dependency on
// core, matching the teacher's layering where pkg/ never imports core/.
type CoreConfigFields struct {
	UNIT                uint64
	MinBondAmount       int64
	BondPerPoint        float64
	MaxTrustPathDepth   int
	EdgeWeightFloor     int16
	HATWeights          [4]float64
	ActivationHeightVM  uint32
	ActivationHeightWoT uint32
	GasPerTxLimit       uint64
	GasPerBlockLimit    uint64
	CodeSizeLimit       int
	StackSizeLimit      int
	CallDepthLimit      int
}
