package hart

import (
	"github.com/riscv-software-src/hartsim/bits"
	"github.com/riscv-software-src/hartsim/csr"
	"github.com/riscv-software-src/hartsim/isa"
)

// standardCSRs builds the base register set every configuration
// carries: machine identity and trap handling, the supervisor trap
// file and address translation pointer when S-mode is advertised, and
// the user-level counter shadows. Definitions follow the shape the
// architecture generator emits.
func (h *Hart) standardCSRs() []*csr.Register {
	xlen := h.xlen

	status := []csr.FieldDef{
		{Name: "MIE", Loc: csr.Location{Lsb: 3, Width: 1}, Type: csr.TypeRWH, ResetDefined: true},
		{Name: "MPIE", Loc: csr.Location{Lsb: 7, Width: 1}, Type: csr.TypeRWH, ResetDefined: true},
		{
			Name:         "MPP",
			Loc:          csr.Location{Lsb: 11, Width: 2},
			Type:         csr.TypeRWRH,
			ResetDefined: true,
			Legalize: func(v bits.Value) bits.Value {
				// only implemented privilege levels are storable;
				// anything else folds to U
				switch m := isa.Mode(v.Uint64()); {
				case m == isa.ModeM || m == isa.ModeU:
					return v
				case m == isa.ModeS && h.extensions&isa.MisaS != 0:
					return v
				default:
					return bits.Zero(2)
				}
			},
		},
		{Name: "MPRV", Loc: csr.Location{Lsb: 17, Width: 1}, Type: csr.TypeRW, ResetDefined: true},
		{Name: "SUM", Loc: csr.Location{Lsb: 18, Width: 1}, Type: csr.TypeRW, ResetDefined: true},
		{Name: "MXR", Loc: csr.Location{Lsb: 19, Width: 1}, Type: csr.TypeRW, ResetDefined: true},
		{Name: "TVM", Loc: csr.Location{Lsb: 20, Width: 1}, Type: csr.TypeRW, ResetDefined: true},
		{Name: "TW", Loc: csr.Location{Lsb: 21, Width: 1}, Type: csr.TypeRW, ResetDefined: true},
		{Name: "TSR", Loc: csr.Location{Lsb: 22, Width: 1}, Type: csr.TypeRW, ResetDefined: true},
	}
	if h.extensions&isa.MisaU != 0 {
		status = append(status, widthField("UXL", 32, xlen))
	}
	if h.extensions&isa.MisaS != 0 {
		status = append(status, widthField("SXL", 34, xlen))
	}

	regs := []*csr.Register{
		csr.NewRegister("misa", isa.CSRMisa, isa.ModeM, xlen, []csr.FieldDef{
			{
				Name:         "MXL",
				Loc:          csr.Location{Lsb: xlen - 2, Width: 2},
				Type:         csr.TypeRWR,
				ResetDefined: true,
				ResetValue:   uint64(xlen / 32),
				// the register width is fixed, so every write folds
				// back to the implemented encoding
				Legalize: func(bits.Value) bits.Value {
					return bits.New(2, uint64(xlen/32))
				},
			},
			{
				Name:         "EXTENSIONS",
				Loc:          csr.Location{Lsb: 0, Width: 26},
				Type:         csr.TypeRO,
				ResetDefined: true,
				ResetValue:   h.extensions,
			},
		}),

		csr.NewRegister("mvendorid", isa.CSRMvendorid, isa.ModeM, xlen,
			roWord(xlen, h.vendorID)),
		csr.NewRegister("marchid", isa.CSRMarchid, isa.ModeM, xlen,
			roWord(xlen, h.archID)),
		csr.NewRegister("mimpid", isa.CSRMimpid, isa.ModeM, xlen,
			roWord(xlen, h.implID)),
		csr.NewRegister("mhartid", isa.CSRMhartid, isa.ModeM, xlen,
			roWord(xlen, h.id)),

		csr.NewRegister("mstatus", isa.CSRMstatus, isa.ModeM, xlen, status),

		csr.NewRegister("mtvec", isa.CSRMtvec, isa.ModeM, xlen, tvecFields(xlen)),

		csr.NewRegister("mscratch", isa.CSRMscratch, isa.ModeM, xlen, []csr.FieldDef{
			{Name: "VALUE", Loc: csr.Location{Lsb: 0, Width: xlen}, Type: csr.TypeRW},
		}),

		csr.NewRegister("mepc", isa.CSRMepc, isa.ModeM, xlen, h.epcFields(xlen)),

		csr.NewRegister("mcause", isa.CSRMcause, isa.ModeM, xlen, []csr.FieldDef{
			{Name: "CODE", Loc: csr.Location{Lsb: 0, Width: xlen}, Type: csr.TypeRWH, ResetDefined: true},
		}),

		csr.NewRegister("mtval", isa.CSRMtval, isa.ModeM, xlen, []csr.FieldDef{
			{Name: "VALUE", Loc: csr.Location{Lsb: 0, Width: xlen}, Type: csr.TypeRWH},
		}),

		csr.NewRegister("mcycle", isa.CSRMcycle, isa.ModeM, xlen,
			hwCounter(xlen),
			csr.WithSWRead(func(x uint) bits.PossiblyUnknown {
				return bits.Known(bits.New(x, h.soc.ReadCycle()))
			})),
		csr.NewRegister("minstret", isa.CSRMinstret, isa.ModeM, xlen,
			hwCounter(xlen),
			csr.WithSWRead(func(x uint) bits.PossiblyUnknown {
				return bits.Known(bits.New(x, h.instret))
			})),

		csr.NewRegister("cycle", isa.CSRCycle, isa.ModeU, xlen,
			hwCounter(xlen),
			csr.WithSWRead(func(x uint) bits.PossiblyUnknown {
				return bits.Known(bits.New(x, h.soc.ReadCycle()))
			})),
		csr.NewRegister("time", isa.CSRTime, isa.ModeU, xlen,
			hwCounter(xlen),
			csr.WithSWRead(func(x uint) bits.PossiblyUnknown {
				return bits.Known(bits.New(x, h.soc.ReadTime()))
			})),
		csr.NewRegister("instret", isa.CSRInstret, isa.ModeU, xlen,
			hwCounter(xlen),
			csr.WithSWRead(func(x uint) bits.PossiblyUnknown {
				return bits.Known(bits.New(x, h.instret))
			})),
	}

	if h.extensions&isa.MisaS != 0 {
		regs = append(regs,
			csr.NewRegister("sstatus", isa.CSRSstatus, isa.ModeS, xlen, []csr.FieldDef{
				{Name: "SIE", Loc: csr.Location{Lsb: 1, Width: 1}, Type: csr.TypeRWH, ResetDefined: true},
				{Name: "SPIE", Loc: csr.Location{Lsb: 5, Width: 1}, Type: csr.TypeRWH, ResetDefined: true},
				{Name: "SPP", Loc: csr.Location{Lsb: 8, Width: 1}, Type: csr.TypeRWH, ResetDefined: true},
			}),
			csr.NewRegister("stvec", isa.CSRStvec, isa.ModeS, xlen, tvecFields(xlen)),
			csr.NewRegister("sscratch", isa.CSRSscratch, isa.ModeS, xlen, []csr.FieldDef{
				{Name: "VALUE", Loc: csr.Location{Lsb: 0, Width: xlen}, Type: csr.TypeRW},
			}),
			csr.NewRegister("sepc", isa.CSRSepc, isa.ModeS, xlen, h.epcFields(xlen)),
			csr.NewRegister("scause", isa.CSRScause, isa.ModeS, xlen, []csr.FieldDef{
				{Name: "CODE", Loc: csr.Location{Lsb: 0, Width: xlen}, Type: csr.TypeRWH, ResetDefined: true},
			}),
			csr.NewRegister("stval", isa.CSRStval, isa.ModeS, xlen, []csr.FieldDef{
				{Name: "VALUE", Loc: csr.Location{Lsb: 0, Width: xlen}, Type: csr.TypeRWH},
			}),
			csr.NewRegister("satp", isa.CSRSatp, isa.ModeS, xlen,
				satpFields(xlen)))
	}
	return regs
}

// tvecFields lays out a trap vector: a mode selector restricted to the
// two implemented dispatch schemes and the vector base.
func tvecFields(xlen uint) []csr.FieldDef {
	return []csr.FieldDef{
		{
			Name:         "MODE",
			Loc:          csr.Location{Lsb: 0, Width: 2},
			Type:         csr.TypeRWR,
			ResetDefined: true,
			Legalize: func(v bits.Value) bits.Value {
				// only direct (0) and vectored (1) exist
				if v.Uint64() > 1 {
					return bits.Zero(2)
				}
				return v
			},
		},
		{Name: "BASE", Loc: csr.Location{Lsb: 2, Width: xlen - 2}, Type: csr.TypeRW, ResetDefined: true},
	}
}

// widthField renders a status width-control field as a fixed-width
// implementation does: present only in the 64-bit layout, with every
// write folded back to the implemented encoding.
func widthField(name string, lsb, xlen uint) csr.FieldDef {
	return csr.FieldDef{
		Name: name,
		LocFor: func(x uint) csr.Location {
			if x == 32 {
				return csr.Location{}
			}
			return csr.Location{Lsb: lsb, Width: 2}
		},
		Type:         csr.TypeRWR,
		ResetDefined: true,
		ResetValue:   uint64(xlen / 32),
		Legalize: func(bits.Value) bits.Value {
			return bits.New(2, uint64(xlen/32))
		},
	}
}

// epcFields is the return-address shape shared by mepc and sepc:
// hardware-updated, holding no value until the first trap, with
// software writes legalized to instruction alignment.
func (h *Hart) epcFields(xlen uint) []csr.FieldDef {
	return []csr.FieldDef{{
		Name: "VALUE",
		Loc:  csr.Location{Lsb: 0, Width: xlen},
		Type: csr.TypeRWRH,
		Legalize: func(v bits.Value) bits.Value {
			if h.extensions&isa.MisaC != 0 {
				return v.Insert(0, bits.Zero(1))
			}
			return v.Insert(0, bits.Zero(2))
		},
	}}
}

// roWord is a register-wide read-only field with a fixed value, the
// shape of the machine identity CSRs.
func roWord(width uint, value uint64) []csr.FieldDef {
	return []csr.FieldDef{{
		Name:         "VALUE",
		Loc:          csr.Location{Lsb: 0, Width: width},
		Type:         csr.TypeRO,
		ResetDefined: true,
		ResetValue:   value,
	}}
}

// hwCounter is a register-wide hardware-updated counter field. The
// live count comes from a software-read hook, so the storage stays at
// its reset value.
func hwCounter(width uint) []csr.FieldDef {
	return []csr.FieldDef{{
		Name:         "COUNT",
		Loc:          csr.Location{Lsb: 0, Width: width},
		Type:         csr.TypeROH,
		ResetDefined: true,
	}}
}

// satpFields lays out the address translation pointer, whose field
// positions and legal MODE values differ between the 32- and 64-bit
// formats.
func satpFields(xlen uint) []csr.FieldDef {
	if xlen == 32 {
		return []csr.FieldDef{
			{Name: "MODE", Loc: csr.Location{Lsb: 31, Width: 1}, Type: csr.TypeRW, ResetDefined: true},
			{Name: "ASID", Loc: csr.Location{Lsb: 22, Width: 9}, Type: csr.TypeRW, ResetDefined: true},
			{Name: "PPN", Loc: csr.Location{Lsb: 0, Width: 22}, Type: csr.TypeRW, ResetDefined: true},
		}
	}
	return []csr.FieldDef{
		{
			Name:         "MODE",
			Loc:          csr.Location{Lsb: 60, Width: 4},
			Type:         csr.TypeRWR,
			ResetDefined: true,
			Legalize: func(v bits.Value) bits.Value {
				switch v.Uint64() {
				case isa.SatpBare, isa.SatpSv39, isa.SatpSv48:
					return v
				default:
					// unsupported modes fall back to no translation
					return bits.Zero(4)
				}
			},
		},
		{Name: "ASID", Loc: csr.Location{Lsb: 44, Width: 16}, Type: csr.TypeRW, ResetDefined: true},
		{Name: "PPN", Loc: csr.Location{Lsb: 0, Width: 44}, Type: csr.TypeRW, ResetDefined: true},
	}
}
