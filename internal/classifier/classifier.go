// Package classifier assigns a maturity stage to every feature vector.
//
// This file implements the Strategy Pattern for stage assignment. Each
// strategy (rule based, cluster based) encapsulates one classification
// algorithm behind the Classifier interface; the pipeline selects one by
// name from configuration.
package classifier

import (
	"context"
	"fmt"

	"santander/internal/core"
	"santander/internal/features"
	"santander/internal/storage"
)

// Classifier maps feature vectors to maturity stages. Implementations must
// label every input vector or fail as a whole.
type Classifier interface {
	Classify(ctx context.Context, vectors []features.Vector) (map[string]core.Stage, error)
}

// Strategy names a registered classification algorithm.
type Strategy string

const (
	StrategyRule    Strategy = "rule"
	StrategyCluster Strategy = "cluster"
)

// Deps carries what strategy constructors may need. Pure strategies ignore
// it.
type Deps struct {
	Store *storage.Store
	Seed  int64
}

// Factory builds one classifier instance from its dependencies.
type Factory func(deps Deps) Classifier

// strategies maps strategy names to their factories. This registry enables
// O(1) lookup and extension without touching the pipeline.
var strategies = map[Strategy]Factory{
	StrategyRule:    func(Deps) Classifier { return RuleBased{} },
	StrategyCluster: func(d Deps) Classifier { return NewClusterBased(d.Store, d.Seed) },
}

// Get returns a classifier for the named strategy. Returns an error if the
// strategy is not registered.
func Get(name Strategy, deps Deps) (Classifier, error) {
	factory, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown classification strategy: %s", name)
	}
	return factory(deps), nil
}

// Register adds a custom strategy under the given name, replacing any
// existing registration.
func Register(name Strategy, factory Factory) {
	strategies[name] = factory
}
