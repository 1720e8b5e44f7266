package solana

import (
	"fmt"
	"strings"
)

// Cluster holds the endpoints of a Solana network.
type Cluster struct {
	Name string
	RPC  string
	WS   string
}

// Known clusters.
var (
	MainnetBeta = Cluster{Name: "mainnet-beta", RPC: "https://api.mainnet-beta.solana.com", WS: "wss://api.mainnet-beta.solana.com"}
	Testnet     = Cluster{Name: "testnet", RPC: "https://api.testnet.solana.com", WS: "wss://api.testnet.solana.com"}
	Devnet      = Cluster{Name: "devnet", RPC: "https://api.devnet.solana.com", WS: "wss://api.devnet.solana.com"}
	Localnet    = Cluster{Name: "localnet", RPC: "http://127.0.0.1:8899", WS: "ws://127.0.0.1:8900"}
)

// DefaultCluster is used when no network is configured.
var DefaultCluster = Devnet

// ClusterByName resolves a network name. "mainnet" is accepted for mainnet-beta.
func ClusterByName(name string) (Cluster, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "devnet":
		return Devnet, nil
	case "mainnet", "mainnet-beta":
		return MainnetBeta, nil
	case "testnet":
		return Testnet, nil
	case "localnet", "localhost":
		return Localnet, nil
	}
	return Cluster{}, fmt.Errorf("unknown network %q", name)
}

// Resolve returns the cluster for name with optional endpoint overrides.
// A WS endpoint is derived from an overridden RPC endpoint when not given.
func Resolve(name, rpcOverride, wsOverride string) (Cluster, error) {
	c, err := ClusterByName(name)
	if err != nil {
		return Cluster{}, err
	}
	if rpcOverride != "" {
		c.RPC = rpcOverride
		if wsOverride == "" {
			c.WS = deriveWS(rpcOverride)
		}
	}
	if wsOverride != "" {
		c.WS = wsOverride
	}
	return c, nil
}

func deriveWS(rpc string) string {
	switch {
	case strings.HasPrefix(rpc, "https://"):
		return "wss://" + strings.TrimPrefix(rpc, "https://")
	case strings.HasPrefix(rpc, "http://"):
		return "ws://" + strings.TrimPrefix(rpc, "http://")
	}
	return rpc
}
