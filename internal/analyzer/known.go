package analyzer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnknownLabel is used for addresses missing from the table
const UnknownLabel = "Unknown Wallet"

// KnownAddressTable maps lower-cased addresses to human labels
type KnownAddressTable map[string]string

// DefaultKnownAddresses returns a fresh copy of the built-in labels
func DefaultKnownAddresses() KnownAddressTable {
	return KnownAddressTable{
		"0x28c6c06298d514db089934071355e5743bf21d60": "Binance Hot Wallet",
		"0xdac17f958d2ee523a2206206994597c13d831ec7": "USDT Contract",
		"0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad": "Uniswap V3 Router",
		"0xa090e606e30bd747d4e6245a1517ebe430f0057e": "Coinbase Wallet",
	}
}

// Label returns the label for address or UnknownLabel
func (t KnownAddressTable) Label(address string) string {
	if label, ok := t[strings.ToLower(address)]; ok {
		return label
	}
	return UnknownLabel
}

// Merge returns a new table with other's entries layered over t
func (t KnownAddressTable) Merge(other KnownAddressTable) KnownAddressTable {
	merged := make(KnownAddressTable, len(t)+len(other))
	for addr, label := range t {
		merged[strings.ToLower(addr)] = label
	}
	for addr, label := range other {
		merged[strings.ToLower(addr)] = label
	}
	return merged
}

// LoadKnownAddresses reads a YAML mapping of address to label, e.g.
//
//	0x28c6c06298d514db089934071355e5743bf21d60: Binance Hot Wallet
func LoadKnownAddresses(path string) (KnownAddressTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read known addresses: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse known addresses %s: %w", path, err)
	}

	table := make(KnownAddressTable, len(raw))
	for addr, label := range raw {
		addr = strings.ToLower(strings.TrimSpace(addr))
		label = strings.TrimSpace(label)
		if addr == "" || label == "" {
			continue
		}
		table[addr] = label
	}
	return table, nil
}
