package lmemstore_test

import (
	"testing"

	"github.com/gordian-engine/lattica/lstore"
	"github.com/gordian-engine/lattica/lstore/lmemstore"
	"github.com/gordian-engine/lattica/lstore/lstoretest"
)

func TestChainStoreCompliance(t *testing.T) {
	t.Parallel()

	lstoretest.TestChainStoreCompliance(t, func(func(func())) (lstore.ChainStore, error) {
		return lmemstore.NewChainStore(), nil
	})
}

func TestValidatorStoreCompliance(t *testing.T) {
	t.Parallel()

	lstoretest.TestValidatorStoreCompliance(t, func(func(func())) (lstore.ValidatorStore, error) {
		return lmemstore.NewValidatorStore(), nil
	})
}
