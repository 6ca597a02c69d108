// Package csr models control/status registers as compositions of typed
// fields. Each field's type encodes who may change it (software,
// hardware, both) and whether software writes are restricted to a legal
// value set. Field positions and types may depend on the hart's
// effective word width and are recomputed on every access, never cached
// across a width change.
//
// Concrete register definitions are emitted by the architecture
// generator as FieldDef tables; this package supplies the state machine
// they plug into.
package csr

import "fmt"

// FieldType classifies a CSR field's software-write legality and
// hardware-update behavior.
type FieldType uint8

const (
	// TypeRO is read-only and never changes after reset.
	TypeRO FieldType = iota
	// TypeROH is read-only to software but updated by hardware.
	TypeROH
	// TypeRW is freely writable by software.
	TypeRW
	// TypeRWH is writable by software and also updated by hardware.
	TypeRWH
	// TypeRWR is writable by software within a restricted legal set;
	// illegal writes are remapped, not rejected.
	TypeRWR
	// TypeRWRH is restricted-writable and also updated by hardware.
	TypeRWRH
)

// ReadOnly reports whether software writes are rejected.
func (t FieldType) ReadOnly() bool { return t == TypeRO || t == TypeROH }

// Writable reports whether software writes are accepted.
func (t FieldType) Writable() bool { return !t.ReadOnly() }

// Immutable reports whether the field never changes after reset, by
// software or hardware.
func (t FieldType) Immutable() bool { return t == TypeRO }

// HardwareUpdates reports whether hardware may change the field
// asynchronously to software.
func (t FieldType) HardwareUpdates() bool {
	return t == TypeROH || t == TypeRWH || t == TypeRWRH
}

// RestrictedValues reports whether software writes pass through a
// legalization rule before committing.
func (t FieldType) RestrictedValues() bool { return t == TypeRWR || t == TypeRWRH }

func (t FieldType) String() string {
	switch t {
	case TypeRO:
		return "RO"
	case TypeROH:
		return "RO-H"
	case TypeRW:
		return "RW"
	case TypeRWH:
		return "RW-H"
	case TypeRWR:
		return "RW-R"
	case TypeRWRH:
		return "RW-RH"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}
