// Package genesis maintains access to the genesis configuration that
// every node in the network must agree on.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Genesis represents the fixed parameters the chain starts from. Every
// node derives the same first block from these values, which is what lets
// independently started nodes converge.
type Genesis struct {
	Seed               string        `json:"seed"`
	Timestamp          int64         `json:"timestamp"`
	Difficulty         int           `json:"difficulty"`
	MiningReward       float64       `json:"mining_reward"`
	TargetBlockTime    time.Duration `json:"target_block_time"`
	AdjustmentInterval int           `json:"adjustment_interval"`
}

// Default returns the genesis configuration the network launched with.
func Default() Genesis {
	return Genesis{
		Seed:               "fixed_seed_for_genesis",
		Timestamp:          1234567890,
		Difficulty:         4,
		MiningReward:       10,
		TargetBlockTime:    10 * time.Second,
		AdjustmentInterval: 10,
	}
}

// Load opens and consumes the genesis file at the specified path.
func Load(path string) (Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("reading genesis file: %w", err)
	}

	genesis := Default()
	if err := json.Unmarshal(data, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis file: %w", err)
	}

	if err := genesis.validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// validate checks the loaded configuration is usable.
func (g Genesis) validate() error {
	if g.Seed == "" {
		return fmt.Errorf("genesis seed must not be empty")
	}
	if g.Difficulty < 1 {
		return fmt.Errorf("genesis difficulty must be at least 1, got %d", g.Difficulty)
	}
	if g.MiningReward <= 0 {
		return fmt.Errorf("genesis mining reward must be positive, got %v", g.MiningReward)
	}
	if g.TargetBlockTime <= 0 {
		return fmt.Errorf("genesis target block time must be positive, got %v", g.TargetBlockTime)
	}
	if g.AdjustmentInterval < 1 {
		return fmt.Errorf("genesis adjustment interval must be at least 1, got %d", g.AdjustmentInterval)
	}

	return nil
}
