package apb

import "strings"

// SignalRole identifies a logical bus signal independently of the naming
// convention the surrounding design uses.
type SignalRole int

// The logical signals of the bus.
const (
	RoleSelect SignalRole = iota
	RoleDirection
	RoleEnable
	RoleAddress
	RoleWriteData
	RoleStrobe
	RoleReadData
	RoleReady
	RoleSlaveError
)

// RequestRoles lists the master-driven signals.
var RequestRoles = []SignalRole{
	RoleSelect, RoleDirection, RoleEnable, RoleAddress, RoleWriteData,
	RoleStrobe,
}

// ResponseRoles lists the slave-driven signals.
var ResponseRoles = []SignalRole{RoleReadData, RoleReady, RoleSlaveError}

var flatSignalNames = map[SignalRole]string{
	RoleSelect:     "PSEL",
	RoleDirection:  "PWRITE",
	RoleEnable:     "PENABLE",
	RoleAddress:    "PADDR",
	RoleWriteData:  "PWDATA",
	RoleStrobe:     "PSTRB",
	RoleReadData:   "PRDATA",
	RoleReady:      "PREADY",
	RoleSlaveError: "PSLVERR",
}

func (r SignalRole) String() string {
	return flatSignalNames[r]
}

// IsRequest reports whether the signal is driven by the master.
func (r SignalRole) IsRequest() bool {
	for _, role := range RequestRoles {
		if r == role {
			return true
		}
	}

	return false
}

// A SignalNamer maps a logical signal role to the physical signal name used
// by a particular design. The protocol engine never depends on physical
// names; only diagnostics and recorded artifacts do.
type SignalNamer interface {
	SignalName(role SignalRole) string
}

// FlatSignalNamer names signals with the conventional flat names (PSEL,
// PWRITE, ...), optionally behind a per-instance prefix.
type FlatSignalNamer struct {
	Prefix string
}

// SignalName returns the flat name of the signal.
func (n FlatSignalNamer) SignalName(role SignalRole) string {
	if n.Prefix == "" {
		return flatSignalNames[role]
	}

	return n.Prefix + "_" + flatSignalNames[role]
}

// PackagedSignalNamer names signals as members of a pair of bundled
// interface records, one per direction, as produced by designs that group
// the bus into host-to-device and device-to-host structs.
type PackagedSignalNamer struct {
	Bundle string
}

// SignalName returns the bundled name of the signal, such as
// "uart_h2d_i.psel" or "uart_d2h_o.pready".
func (n PackagedSignalNamer) SignalName(role SignalRole) string {
	suffix := "_d2h_o."
	if role.IsRequest() {
		suffix = "_h2d_i."
	}

	return n.Bundle + suffix + strings.ToLower(flatSignalNames[role])
}
