package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/cascoin/crvm/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Chain.Unit != 100_000_000 {
		t.Fatalf("unexpected chain unit: %d", AppConfig.Chain.Unit)
	}
	if AppConfig.Graph.MaxTrustPathDepth != 3 {
		t.Fatalf("unexpected max trust path depth: %d", AppConfig.Graph.MaxTrustPathDepth)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("testnet")
	if AppConfig.Graph.EdgeWeightFloor != 5 {
		t.Fatalf("expected EdgeWeightFloor 5, got %d", AppConfig.Graph.EdgeWeightFloor)
	}
	if AppConfig.Storage.DBPath != "/tmp/crvm-testnet" {
		t.Fatalf("expected testnet db path override")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("chain:\n  unit: 1000\ngraph:\n  max_trust_path_depth: 7\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Chain.Unit != 1000 {
		t.Fatalf("expected chain unit 1000, got %d", AppConfig.Chain.Unit)
	}
	if AppConfig.Graph.MaxTrustPathDepth != 7 {
		t.Fatalf("expected max trust path depth 7, got %d", AppConfig.Graph.MaxTrustPathDepth)
	}
}
