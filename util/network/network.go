// Package network normalizes the peer and listener addresses given on the
// command line.
package network

import (
	"net"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
)

// NormalizeAddresses returns the addresses with defaultPort appended to
// those missing a port. Repeated addresses are dropped, keeping the first.
func NormalizeAddresses(addresses []string, defaultPort string) ([]string, error) {
	normalized := make([]string, 0, len(addresses))
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, address := range addresses {
		address, err := NormalizeAddress(address, defaultPort)
		if err != nil {
			return nil, err
		}
		if seen.Add(address) {
			normalized = append(normalized, address)
		}
	}
	return normalized, nil
}

// NormalizeAddress returns address with defaultPort appended if it has no
// port.
func NormalizeAddress(address, defaultPort string) (string, error) {
	_, _, err := net.SplitHostPort(address)
	if err == nil {
		return address, nil
	}

	// SplitHostPort also fails on addresses that a port cannot fix.
	withPort := net.JoinHostPort(address, defaultPort)
	_, _, err = net.SplitHostPort(withPort)
	if err != nil {
		return "", errors.Wrapf(err, "malformed address %s", address)
	}
	return withPort, nil
}
