// Package classify decides whether a client matches the denylist. The engine
// is pure: no I/O, no shared mutable state, safe to call from every scan
// goroutine with the same Rules and VendorLookup.
package classify

import (
	"strings"

	"github.com/HerbHall/fleetaudit/internal/denylist"
	"github.com/HerbHall/fleetaudit/pkg/models"
)

// VendorLookup resolves a MAC address to a manufacturer name. An empty
// string means unknown.
type VendorLookup interface {
	Lookup(mac string) string
}

// Verdict is the outcome of classifying one client.
type Verdict struct {
	Bad bool
	// Rule is the denylist entry that matched, empty when Bad is false.
	Rule string
}

// Classify runs a client through the denylist. Checks short-circuit in
// order: MAC prefix first, then company substring against both the
// service-reported manufacturer and the vendor-table manufacturer.
// A missing MAC or manufacturer never matches. vendor may be nil.
func Classify(client models.Client, rules *denylist.Rules, vendor VendorLookup) Verdict {
	if client.MAC != "" {
		for _, prefix := range rules.MACPrefixes {
			if strings.HasPrefix(client.MAC, prefix) {
				return Verdict{Bad: true, Rule: prefix}
			}
		}
	}

	vendorName := ""
	if vendor != nil && client.MAC != "" {
		vendorName = vendor.Lookup(client.MAC)
	}
	for _, marker := range rules.Companies {
		if client.Manufacturer != "" && strings.Contains(client.Manufacturer, marker) {
			return Verdict{Bad: true, Rule: marker}
		}
		if vendorName != "" && strings.Contains(vendorName, marker) {
			return Verdict{Bad: true, Rule: marker}
		}
	}

	return Verdict{}
}
