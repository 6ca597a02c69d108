package isa

// CSR addresses for the registers the base model implements. The
// address encodes accessibility: bits [11:10] == 11 marks a read-only
// register, bits [9:8] give the minimum privilege.
const (
	CSRMisa      uint16 = 0x301
	CSRMvendorid uint16 = 0xF11
	CSRMarchid   uint16 = 0xF12
	CSRMimpid    uint16 = 0xF13
	CSRMhartid   uint16 = 0xF14

	CSRMstatus  uint16 = 0x300
	CSRMtvec    uint16 = 0x305
	CSRMscratch uint16 = 0x340
	CSRMepc     uint16 = 0x341
	CSRMcause   uint16 = 0x342
	CSRMtval    uint16 = 0x343

	CSRMcycle   uint16 = 0xB00
	CSRMinstret uint16 = 0xB02

	CSRSstatus  uint16 = 0x100
	CSRStvec    uint16 = 0x105
	CSRSscratch uint16 = 0x140
	CSRSepc     uint16 = 0x141
	CSRScause   uint16 = 0x142
	CSRStval    uint16 = 0x143

	CSRSatp uint16 = 0x180

	CSRCycle   uint16 = 0xC00
	CSRTime    uint16 = 0xC01
	CSRInstret uint16 = 0xC02
)

// CSRMinPriv extracts the minimum privilege encoded in a CSR address.
func CSRMinPriv(addr uint16) uint8 { return uint8(addr>>8) & 0b11 }

// CSRReadOnly reports whether the address sits in the read-only region
// of the CSR space.
func CSRReadOnly(addr uint16) bool { return addr>>10 == 0b11 }

// misa extension bits, one per letter A-Z.
const (
	MisaA uint64 = 1 << iota
	MisaB
	MisaC
	MisaD
	MisaE
	MisaF
	MisaG
	MisaH
	MisaI
	MisaJ
	MisaK
	MisaL
	MisaM
	MisaN
	MisaO
	MisaP
	MisaQ
	MisaR
	MisaS
	MisaT
	MisaU
	MisaV
	MisaW
	MisaX
	MisaY
	MisaZ
)

// MisaExtensions folds a set of extension letters into the misa
// extension field. Unknown letters are ignored.
func MisaExtensions(letters string) uint64 {
	var bits uint64
	for _, r := range letters {
		if r >= 'A' && r <= 'Z' {
			bits |= 1 << uint(r-'A')
		}
		if r >= 'a' && r <= 'z' {
			bits |= 1 << uint(r-'a')
		}
	}
	return bits
}

// satp.MODE encodings.
const (
	SatpBare uint64 = 0
	SatpSv32 uint64 = 1
	SatpSv39 uint64 = 8
	SatpSv48 uint64 = 9
	SatpSv57 uint64 = 10
)
