package csr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riscv-software-src/hartsim/bits"
	"github.com/riscv-software-src/hartsim/csr"
	"github.com/riscv-software-src/hartsim/isa"
)

var _ = Describe("FieldType", func() {
	It("should classify read-only types", func() {
		Expect(csr.TypeRO.ReadOnly()).To(BeTrue())
		Expect(csr.TypeROH.ReadOnly()).To(BeTrue())
		Expect(csr.TypeRW.ReadOnly()).To(BeFalse())
		Expect(csr.TypeRWH.ReadOnly()).To(BeFalse())
		Expect(csr.TypeRWR.ReadOnly()).To(BeFalse())
		Expect(csr.TypeRWRH.ReadOnly()).To(BeFalse())
	})

	It("should treat only RO as immutable", func() {
		Expect(csr.TypeRO.Immutable()).To(BeTrue())
		Expect(csr.TypeROH.Immutable()).To(BeFalse())
		Expect(csr.TypeRW.Immutable()).To(BeFalse())
	})

	It("should identify hardware-updated types", func() {
		Expect(csr.TypeROH.HardwareUpdates()).To(BeTrue())
		Expect(csr.TypeRWH.HardwareUpdates()).To(BeTrue())
		Expect(csr.TypeRWRH.HardwareUpdates()).To(BeTrue())
		Expect(csr.TypeRO.HardwareUpdates()).To(BeFalse())
		Expect(csr.TypeRW.HardwareUpdates()).To(BeFalse())
	})

	It("should identify restricted types", func() {
		Expect(csr.TypeRWR.RestrictedValues()).To(BeTrue())
		Expect(csr.TypeRWRH.RestrictedValues()).To(BeTrue())
		Expect(csr.TypeRW.RestrictedValues()).To(BeFalse())
	})

	It("should have Writable as the complement of ReadOnly", func() {
		for _, t := range []csr.FieldType{
			csr.TypeRO, csr.TypeROH, csr.TypeRW,
			csr.TypeRWH, csr.TypeRWR, csr.TypeRWRH,
		} {
			Expect(t.Writable()).To(Equal(!t.ReadOnly()))
		}
	})
})

var _ = Describe("Field", func() {
	newCtl := func() *csr.Register {
		return csr.NewRegister("ctl", 0x7C0, isa.ModeM, 64, []csr.FieldDef{
			{
				Name: "ID", Loc: csr.Location{Lsb: 0, Width: 8},
				Type: csr.TypeRO, ResetDefined: true, ResetValue: 0x42,
			},
			{
				Name: "COUNT", Loc: csr.Location{Lsb: 16, Width: 8},
				Type: csr.TypeROH, ResetDefined: true,
			},
			{
				Name: "DATA", Loc: csr.Location{Lsb: 32, Width: 16},
				Type: csr.TypeRW, ResetDefined: true,
			},
		})
	}

	Context("with read-only fields", func() {
		It("should reject software writes and leave the value unchanged", func() {
			reg := newCtl()
			id := reg.Field("ID")

			ok := id.SWWrite(bits.New(8, 0xFF), 64)

			Expect(ok).To(BeFalse())
			Expect(id.HWRead(64).Value().Uint64()).To(Equal(uint64(0x42)))
		})

		It("should reject software writes to hardware-updated read-only fields", func() {
			reg := newCtl()
			count := reg.Field("COUNT")

			Expect(count.SWWrite(bits.New(8, 1), 64)).To(BeFalse())
			Expect(count.HWRead(64).Value().Uint64()).To(Equal(uint64(0)))
		})

		It("should still accept hardware writes", func() {
			reg := newCtl()
			count := reg.Field("COUNT")

			count.HWWrite(bits.New(8, 7), 64)

			Expect(count.HWRead(64).Value().Uint64()).To(Equal(uint64(7)))
		})
	})

	Context("with writable fields", func() {
		It("should commit software writes verbatim", func() {
			reg := newCtl()
			data := reg.Field("DATA")

			ok := data.SWWrite(bits.New(16, 0xBEEF), 64)

			Expect(ok).To(BeTrue())
			Expect(data.HWRead(64).Value().Uint64()).To(Equal(uint64(0xBEEF)))
		})

		It("should not disturb neighboring fields", func() {
			reg := newCtl()

			reg.Field("DATA").SWWrite(bits.Ones(16), 64)

			Expect(reg.Field("ID").HWRead(64).Value().Uint64()).To(Equal(uint64(0x42)))
			Expect(reg.Field("COUNT").HWRead(64).Value().Uint64()).To(Equal(uint64(0)))
		})
	})

	Context("with restricted fields", func() {
		// A 64-bit register with a 4-bit field at [11:8] whose legal
		// values are 0, 1, and 2. Illegal attempts clamp to the
		// largest legal value.
		newRestricted := func() *csr.Register {
			return csr.NewRegister("sel", 0x7C1, isa.ModeM, 64, []csr.FieldDef{
				{
					Name: "WAY", Loc: csr.Location{Lsb: 8, Width: 4},
					Type: csr.TypeRWR, ResetDefined: true,
					Legalize: func(v bits.Value) bits.Value {
						if v.Uint64() > 2 {
							return bits.New(4, 2)
						}
						return v
					},
				},
			})
		}

		It("should commit legal values unchanged", func() {
			way := newRestricted().Field("WAY")

			Expect(way.SWWrite(bits.New(4, 1), 64)).To(BeTrue())
			Expect(way.HWRead(64).Value().Uint64()).To(Equal(uint64(1)))
		})

		It("should remap an illegal write to a legal value and still report success", func() {
			way := newRestricted().Field("WAY")

			ok := way.SWWrite(bits.New(4, 3), 64)

			Expect(ok).To(BeTrue(), "remapped writes count as accepted")
			got := way.HWRead(64).Value().Uint64()
			Expect(got).NotTo(Equal(uint64(3)))
			Expect(got).To(BeElementOf(uint64(0), uint64(1), uint64(2)))
		})

		It("should legalize every illegal input, not just small ones", func() {
			way := newRestricted().Field("WAY")

			Expect(way.SWWrite(bits.New(4, 0xF), 64)).To(BeTrue())
			Expect(way.HWRead(64).Value().Uint64()).To(Equal(uint64(2)))
		})

		It("should bypass legalization on hardware writes", func() {
			way := newRestricted().Field("WAY")

			way.HWWrite(bits.New(4, 0xF), 64)

			Expect(way.HWRead(64).Value().Uint64()).To(Equal(uint64(0xF)))
		})
	})

	Context("with width-dependent locations", func() {
		newPager := func() *csr.Register {
			return csr.NewRegister("pager", 0x180, isa.ModeS, 64, []csr.FieldDef{
				{
					Name: "MODE",
					LocFor: func(xlen uint) csr.Location {
						if xlen == 32 {
							return csr.Location{Lsb: 31, Width: 1}
						}
						return csr.Location{Lsb: 60, Width: 4}
					},
					Type: csr.TypeRW, ResetDefined: true,
				},
			})
		}

		It("should recompute the location on every access", func() {
			mode := newPager().Field("MODE")

			Expect(mode.Location(32)).To(Equal(csr.Location{Lsb: 31, Width: 1}))
			Expect(mode.Location(64)).To(Equal(csr.Location{Lsb: 60, Width: 4}))
		})

		It("should write different storage bits at different widths", func() {
			reg := newPager()
			mode := reg.Field("MODE")

			mode.SWWrite(bits.New(4, 0x8), 64)
			Expect(reg.HWRead(64).Value().Extract(60, 4).Uint64()).To(Equal(uint64(8)))

			mode.SWWrite(bits.New(1, 1), 32)
			Expect(reg.HWRead(64).Value().Bit(31)).To(BeTrue())
		})
	})

	Context("with width-dependent types", func() {
		It("should apply the type for the effective width", func() {
			reg := csr.NewRegister("gated", 0x7C2, isa.ModeM, 64, []csr.FieldDef{
				{
					Name: "EN", Loc: csr.Location{Lsb: 0, Width: 1},
					TypeFor: func(xlen uint) csr.FieldType {
						if xlen == 32 {
							return csr.TypeRO
						}
						return csr.TypeRW
					},
					ResetDefined: true,
				},
			})
			en := reg.Field("EN")

			Expect(en.SWWrite(bits.New(1, 1), 32)).To(BeFalse())
			Expect(en.SWWrite(bits.New(1, 1), 64)).To(BeTrue())
		})
	})

	Context("with undefined reset values", func() {
		newScratch := func() *csr.Register {
			return csr.NewRegister("scratch", 0x340, isa.ModeM, 64, []csr.FieldDef{
				{Name: "VALUE", Loc: csr.Location{Lsb: 0, Width: 64}, Type: csr.TypeRW},
			})
		}

		It("should read as unknown until first written", func() {
			v := newScratch().Field("VALUE")
			Expect(v.HWRead(64).IsUnknown()).To(BeTrue())
		})

		It("should become known after a software write", func() {
			v := newScratch().Field("VALUE")

			v.SWWrite(bits.New(64, 0xCAFE), 64)

			got := v.HWRead(64)
			Expect(got.IsUnknown()).To(BeFalse())
			Expect(got.Value().Uint64()).To(Equal(uint64(0xCAFE)))
		})

		It("should become known after a hardware write", func() {
			v := newScratch().Field("VALUE")

			v.HWWrite(bits.New(64, 1), 64)

			Expect(v.HWRead(64).IsUnknown()).To(BeFalse())
		})

		It("should return to unknown on reset", func() {
			reg := newScratch()
			reg.Field("VALUE").SWWrite(bits.New(64, 1), 64)

			reg.Reset()

			Expect(reg.Field("VALUE").HWRead(64).IsUnknown()).To(BeTrue())
		})
	})
})
