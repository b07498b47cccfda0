// Package models defines the data types exchanged between the directory
// client, the scanner pipeline, and the report writer.
package models

import (
	"encoding/json"
	"strconv"
)

// Organization is the top-level account scope containing networks.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Network is one managed site under an organization. It is the unit of
// concurrent work during a fleet audit.
type Network struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Usage is the sent/received byte-count pair reported per client.
type Usage struct {
	Sent float64 `json:"sent"`
	Recv float64 `json:"recv"`
}

// Display renders usage as a single report column value.
func (u Usage) Display() string {
	return "sent=" + strconv.FormatFloat(u.Sent, 'f', -1, 64) +
		" recv=" + strconv.FormatFloat(u.Recv, 'f', -1, 64)
}

// Client is the identity record the directory service returns for one
// end-user device. The field set mirrors the fixed report schema; attributes
// the service adds beyond these are ignored on decode.
type Client struct {
	ID                 string  `json:"id"`
	MAC                string  `json:"mac"`
	Description        string  `json:"description"`
	IP                 string  `json:"ip"`
	IP6                string  `json:"ip6"`
	IP6Local           string  `json:"ip6Local"`
	User               string  `json:"user"`
	FirstSeen          string  `json:"firstSeen"`
	LastSeen           string  `json:"lastSeen"`
	Manufacturer       string  `json:"manufacturer"`
	OS                 string  `json:"os"`
	RecentDeviceSerial string  `json:"recentDeviceSerial"`
	RecentDeviceName   string  `json:"recentDeviceName"`
	RecentDeviceMAC    string  `json:"recentDeviceMac"`
	SSID               string  `json:"ssid"`
	VLAN               FlexInt `json:"vlan"`
	Switchport         string  `json:"switchport"`
	Usage              Usage   `json:"usage"`
	Status             string  `json:"status"`
	Notes              string  `json:"notes"`
	SMInstalled        bool    `json:"smInstalled"`
	GroupPolicy8021x   string  `json:"groupPolicy8021x"`
}

// FlexInt decodes a JSON field that some API versions send as a number and
// others as a string or null. It renders as its original digits, or empty
// when absent.
type FlexInt string

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*f = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*f = FlexInt(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(n.String())
	return nil
}

func (f FlexInt) String() string { return string(f) }

// ClientPolicy is the directory service's response to a policy update.
type ClientPolicy struct {
	MAC          string `json:"mac"`
	DevicePolicy string `json:"devicePolicy"`
}

// BlockState is the rendered value of the report's blocked column.
type BlockState string

const (
	// BlockNotAttempted means remediation was disabled or skipped.
	BlockNotAttempted BlockState = "false"
	// BlockSucceeded means the directory service confirmed the block policy.
	BlockSucceeded BlockState = "true"
	// BlockFailed means the block call was attempted and failed. The failure
	// detail is kept on the match, not in the report column.
	BlockFailed BlockState = "Failed"
)

// MatchedClient is a client judged bad by the classification engine,
// annotated with the evidence and remediation outcome carried into the
// report.
type MatchedClient struct {
	Client

	// MatchedRule is the denylist entry that fired.
	MatchedRule string

	// UsageDisplay is the flattened usage column value.
	UsageDisplay string

	Blocked     BlockState
	BlockDetail string
}

// NetworkResult is the unit returned by one network scan. A failed scan
// carries no clients; the error text is preserved so the run can report the
// site as unreachable instead of dropping it.
type NetworkResult struct {
	Network Network
	OK      bool
	Matches []MatchedClient
	Err     string
}
