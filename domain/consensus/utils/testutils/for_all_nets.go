package testutils

import (
	"testing"

	"github.com/pocnet/pocd/domain/chaincfg"
)

// ForAllNets runs the passed testFunc with a copy of the parameters of
// every known network.
func ForAllNets(t *testing.T, testFunc func(*testing.T, *chaincfg.Params)) {
	allParams := []chaincfg.Params{
		chaincfg.MainnetParams,
		chaincfg.SimnetParams,
	}

	for _, params := range allParams {
		params := params
		t.Run(params.Name, func(t *testing.T) {
			t.Parallel()
			t.Logf("Running test for %s", params.Name)
			testFunc(t, &params)
		})
	}
}
