// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"strconv"
	"strings"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"inet.af/netaddr"
)

var defaultFirstIP = [4]byte{172, 168, 1, 1}

// ipAllocator hands out IPv4 addresses in a monotonic, call-order deterministic sequence
type ipAllocator struct {
	issued  map[netaddr.IP]bool
	last    [4]byte
	hasLast bool
}

func newIPAllocator() *ipAllocator {
	return &ipAllocator{issued: make(map[netaddr.IP]bool)}
}

// reserve records an address as issued without making it the starting point of the next allocation
func (a *ipAllocator) reserve(ip netaddr.IP) {
	a.issued[ip] = true
}

func (a *ipAllocator) allocate(domain string) (netaddr.IP, error) {
	octets, err := parseDomain(domain)
	if err != nil {
		return netaddr.IP{}, err
	}
	if domain == "" {
		octets = defaultFirstIP
		if a.hasLast {
			octets = a.last
		}
	}

	ip := netaddr.IPv4(octets[0], octets[1], octets[2], octets[3])
	for a.issued[ip] {
		if !increment(&octets) {
			return netaddr.IP{}, errors.NewUnavailable("No IPv4 address left after %s", ip)
		}
		ip = netaddr.IPv4(octets[0], octets[1], octets[2], octets[3])
	}
	a.issued[ip] = true
	a.last = octets
	a.hasLast = true
	log.Debugf("Allocated IPv4 address %s", ip)
	return ip, nil
}

// Parses up to four leading octets; missing octets are set to 1
func parseDomain(domain string) ([4]byte, error) {
	octets := [4]byte{1, 1, 1, 1}
	if domain == "" {
		return octets, nil
	}
	parts := strings.Split(strings.TrimSuffix(domain, "."), ".")
	if len(parts) > 4 {
		return octets, errors.NewInvalid("IP domain %q has more than 4 octets", domain)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return octets, errors.NewInvalid("IP domain %q has invalid octet %q", domain, p)
		}
		octets[i] = byte(v)
	}
	return octets, nil
}

// Advances the address right to left; an octet that is full resets the octets to its right to 1.
// Returns false once every octet is full.
func increment(octets *[4]byte) bool {
	for i := 3; i >= 0; i-- {
		if octets[i] < 255 {
			octets[i]++
			for j := i + 1; j < 4; j++ {
				octets[j] = 1
			}
			return true
		}
	}
	return false
}
