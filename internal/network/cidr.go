package network

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	ErrInvalidAddress = errors.New("network: invalid address")
	ErrInvalidPrefix  = errors.New("network: invalid prefix length")
)

// Matches reports whether address equals rangeOrAddress (no prefix) or lies
// inside the network it denotes (with prefix). Addresses of different families
// never match, and prefixes outside [0, bitlen] are rejected.
func Matches(address, rangeOrAddress string) bool {
	ip := parseFamily(address)
	if ip == nil {
		return false
	}

	networkPart, prefixPart, hasPrefix := strings.Cut(strings.TrimSpace(rangeOrAddress), "/")
	network := parseFamily(networkPart)
	if network == nil || len(network) != len(ip) {
		return false
	}

	if !hasPrefix {
		return ip.Equal(network)
	}

	prefix, err := strconv.Atoi(prefixPart)
	if err != nil || prefix < 0 || prefix > len(ip)*8 {
		return false
	}

	mask := prefixMask(prefix, len(ip))
	for i := range ip {
		if ip[i]&mask[i] != network[i]&mask[i] {
			return false
		}
	}
	return true
}

// MatchesAny reports whether address matches at least one of the given ranges.
func MatchesAny(address string, ranges []string) bool {
	for _, r := range ranges {
		if Matches(address, r) {
			return true
		}
	}
	return false
}

// prefixMask builds a mask of size bytes whose first prefix bits are set.
func prefixMask(prefix, size int) []byte {
	mask := make([]byte, size)
	full := prefix / 8
	for i := 0; i < full; i++ {
		mask[i] = 0xFF
	}
	if rem := prefix % 8; rem != 0 && full < size {
		mask[full] = byte(0xFF << (8 - rem))
	}
	return mask
}

// parseFamily returns a 4-byte slice for IPv4 input and a 16-byte slice for IPv6 input.
// IPv4-mapped IPv6 notation stays in the IPv6 family.
func parseFamily(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return nil
	}
	if strings.Contains(raw, ":") {
		return ip.To16()
	}
	return ip.To4()
}

// IsValidAddress reports whether raw is a syntactically valid IPv4 or IPv6 address.
func IsValidAddress(raw string) bool {
	return parseFamily(raw) != nil
}

// NormalizeRange validates an address or CIDR and returns its canonical form
// (the network address for CIDRs, e.g. "10.1.2.3/8" becomes "10.0.0.0/8").
func NormalizeRange(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addrPart, prefixPart, hasPrefix := strings.Cut(raw, "/")

	ip := parseFamily(addrPart)
	if ip == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	if !hasPrefix {
		return ip.String(), nil
	}

	prefix, err := strconv.Atoi(prefixPart)
	if err != nil || prefix < 0 || prefix > len(ip)*8 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, raw)
	}

	mask := prefixMask(prefix, len(ip))
	masked := make(net.IP, len(ip))
	for i := range ip {
		masked[i] = ip[i] & mask[i]
	}
	return fmt.Sprintf("%s/%d", masked.String(), prefix), nil
}
