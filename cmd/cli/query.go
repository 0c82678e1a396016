// Package cli holds the cobra subcommand trees consumed by cmd/crvmctl.
// Grounded on the teacher's cmd/cli/access_control.go: a PersistentPreRunE
// opens the backing store once per invocation, subcommands decode hex
// addresses and call straight into the core package, exported as a single
// *cobra.Command per domain area.
package cli

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cascoin/crvm/core"
	pkgconfig "github.com/cascoin/crvm/pkg/config"
)

var (
	dbPath  string
	store   core.Store
	queries *core.QueryService
)

// loadCoreConfig loads pkg/config's viper-backed configuration for the
// CRVM_ENV environment and translates it to core.Config. Falling back to
// core.DefaultConfig lets query commands still run against a store created
// with defaults when no config file is present, e.g. ad-hoc test stores.
func loadCoreConfig() core.Config {
	c, err := pkgconfig.LoadFromEnv()
	if err != nil {
		logrus.WithError(err).Debug("no config file found, using built-in defaults")
		return core.DefaultConfig(100_000_000)
	}
	f := c.ToCoreConfig()
	return core.Config{
		UNIT:                f.UNIT,
		MinBondAmount:       f.MinBondAmount,
		BondPerPoint:        f.BondPerPoint,
		MaxTrustPathDepth:   f.MaxTrustPathDepth,
		EdgeWeightFloor:     f.EdgeWeightFloor,
		HATWeights:          f.HATWeights,
		ActivationHeightVM:  f.ActivationHeightVM,
		ActivationHeightWoT: f.ActivationHeightWoT,
		GasPerTxLimit:       f.GasPerTxLimit,
		GasPerBlockLimit:    f.GasPerBlockLimit,
		CodeSizeLimit:       f.CodeSizeLimit,
		StackSizeLimit:      f.StackSizeLimit,
		CallDepthLimit:      f.CallDepthLimit,
	}
}

func decodeAddr(s string) (core.AddrId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return core.AddrId{}, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	return core.AddrFromBytes(b)
}

func openStore(cmd *cobra.Command, _ []string) error {
	s, err := core.OpenLevelDBStore(dbPath)
	if err != nil {
		return err
	}
	store = s
	cfg := loadCoreConfig()
	registry := core.NewContractRegistry(store)
	trust := core.NewTrustStore(store, cfg)
	path := core.NewPathFinder(trust, cfg)
	cluster := core.NewClusterPropagator(store, trust, cfg)
	behavior := core.NewBehaviorAnalyzer(store)
	graph := core.NewGraphAnalyzer(trust, cluster, cfg)
	hat := core.NewHATScorer(behavior, graph, trust, path, cfg)
	disputes := core.NewDisputeManager(store, trust)
	queries = core.NewQueryService(store, cfg, registry, trust, path, cluster, behavior, graph, hat, disputes)
	return nil
}

// QueryCmd is the "query" subcommand tree exposing the Query Interface
// (C12) to operators.
func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "query",
		Short:             "read-only queries against a CRVM store",
		PersistentPreRunE: openStore,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "./crvm-data", "path to the CRVM leveldb store")

	cmd.AddCommand(reputationCmd())
	cmd.AddCommand(trustPathCmd())
	cmd.AddCommand(clusterCmd())
	cmd.AddCommand(behaviorCmd())
	cmd.AddCommand(contractCmd())
	return cmd
}

func reputationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reputation <viewer> <target>",
		Short: "HAT v2 reputation of target as seen by viewer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := decodeAddr(args[0])
			if err != nil {
				return err
			}
			target, err := decodeAddr(args[1])
			if err != nil {
				return err
			}
			score, err := queries.GetReputation(viewer, target, time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Printf("%.2f\n", score)
			return nil
		},
	}
}

func trustPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust-path <from> <to>",
		Short: "best weighted trust path between two addresses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := decodeAddr(args[0])
			if err != nil {
				return err
			}
			to, err := decodeAddr(args[1])
			if err != nil {
				return err
			}
			p, err := queries.FindTrustPath(from, to)
			if err != nil {
				return err
			}
			fmt.Printf("weight=%.4f hops=%d\n", p.TotalWeight, len(p.Addresses)-1)
			for _, a := range p.Addresses {
				fmt.Println(" ", a.Hex())
			}
			return nil
		},
	}
}

func clusterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cluster <seed>",
		Short: "detect the wallet cluster seeded at an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := decodeAddr(args[0])
			if err != nil {
				return err
			}
			summary, err := queries.GetCluster(seed)
			if err != nil {
				return err
			}
			fmt.Printf("members=%d effective_score=%.2f edges=%d\n", len(summary.Members), summary.EffectiveScore, summary.EdgeCount)
			return nil
		},
	}
}

func behaviorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "behavior <addr>",
		Short: "behavioral metrics for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := decodeAddr(args[0])
			if err != nil {
				return err
			}
			m, err := queries.GetBehaviorMetrics(addr)
			if err != nil {
				return err
			}
			fmt.Printf("trades=%d partners=%d score=%.2f\n", len(m.Trades), len(m.UniquePartners), m.Score(100_000_000))
			return nil
		},
	}
}

func contractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contract <addr>",
		Short: "deployed contract metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := decodeAddr(args[0])
			if err != nil {
				return err
			}
			c, err := queries.GetContract(addr)
			if err != nil {
				return err
			}
			fmt.Printf("deployer=%s deploy_height=%d code_bytes=%d\n", c.Deployer.Hex(), c.DeployHeight, len(c.Code))
			return nil
		},
	}
}
