package config

import (
	"github.com/pocnet/pocd/domain/chaincfg"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	Simnet bool `long:"simnet" description:"Use the simulation test network"`

	ActiveNetParams *chaincfg.Params
}

// ResolveNetwork sets ActiveNetParams according to the network flags.
// The main network is used unless another one was selected.
func (networkFlags *NetworkFlags) ResolveNetwork() {
	networkFlags.ActiveNetParams = &chaincfg.MainnetParams
	if networkFlags.Simnet {
		networkFlags.ActiveNetParams = &chaincfg.SimnetParams
	}
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *chaincfg.Params {
	return networkFlags.ActiveNetParams
}
