package config_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riscv-software-src/hartsim/config"
	"github.com/riscv-software-src/hartsim/isa"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	write := func(name, content string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	Describe("Default", func() {
		It("should validate cleanly", func() {
			Expect(config.Default().Validate()).To(Succeed())
		})

		It("should describe the stock platform", func() {
			cfg := config.Default()

			Expect(cfg.Hart.XLEN).To(Equal(uint(64)))
			Expect(cfg.Hart.Extensions).To(Equal("IMASU"))
			Expect(cfg.Memory.Regions).To(HaveLen(1))
			Expect(cfg.Memory.Regions[0].Base).To(Equal(uint64(0x8000_0000)))
			Expect(cfg.Hart.ResetVector).To(Equal(uint64(0x8000_0000)))
		})

		It("should give the RAM region full main-memory attributes", func() {
			attrs, err := config.Default().Memory.Regions[0].PMA()
			Expect(err).NotTo(HaveOccurred())
			Expect(attrs).To(Equal(isa.PMARAM))
		})
	})

	Describe("Load", func() {
		It("should load a complete document", func() {
			path := write("full.yaml", `
schema:
  name: hartsim-config
  version: 1
hart:
  xlen: 32
  extensions: IM
  vendor_id: 0x1234
  reset_vector: 0x80000100
memory:
  regions:
    - name: ram
      base: 0x80000000
      size: 0x100000
      attrs: rwxalc
    - name: uart
      base: 0x10000000
      size: 0x1000
      attrs: rwio
trace:
  enabled: true
`)
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Hart.XLEN).To(Equal(uint(32)))
			Expect(cfg.Hart.Extensions).To(Equal("IM"))
			Expect(cfg.Hart.VendorID).To(Equal(uint64(0x1234)))
			Expect(cfg.Hart.ResetVector).To(Equal(uint64(0x8000_0100)))
			Expect(cfg.Memory.Regions).To(HaveLen(2))
			Expect(cfg.Trace.Enabled).To(BeTrue())

			attrs, err := cfg.Memory.Regions[1].PMA()
			Expect(err).NotTo(HaveOccurred())
			Expect(attrs).To(Equal(isa.PMARead | isa.PMAWrite | isa.PMAIO))
		})

		It("should fill absent fields with defaults", func() {
			path := write("sparse.yaml", `
hart:
  xlen: 64
`)
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Schema.Name).To(Equal(config.SchemaName))
			Expect(cfg.Schema.Version).To(Equal(config.SchemaVersion))
			Expect(cfg.Hart.Extensions).To(Equal("IMASU"))
			Expect(cfg.Memory.Regions).To(HaveLen(1))
			Expect(cfg.Hart.ResetVector).To(Equal(uint64(0x8000_0000)))
		})

		It("should point the default reset vector at the first executable region", func() {
			path := write("split.yaml", `
memory:
  regions:
    - name: rom-window
      base: 0x1000
      size: 0x1000
      attrs: r
    - name: ram
      base: 0x80000000
      size: 0x100000
      attrs: rwxalc
`)
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Hart.ResetVector).To(Equal(uint64(0x8000_0000)))
		})

		It("should reject unknown keys", func() {
			path := write("typo.yaml", `
hart:
  xlen: 64
  extentions: IMASU
`)
			_, err := config.Load(path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to parse config"))
		})

		It("should return an error for a missing file", func() {
			_, err := config.Load(filepath.Join(tempDir, "nope.yaml"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to read config file"))
		})

		It("should reject an unknown schema name", func() {
			path := write("schema.yaml", `
schema:
  name: other-config
`)
			_, err := config.Load(path)
			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Path).To(Equal("schema.name"))
		})

		It("should reject an unsupported schema version", func() {
			path := write("version.yaml", `
schema:
  name: hartsim-config
  version: 2
`)
			_, err := config.Load(path)
			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Path).To(Equal("schema.version"))
		})
	})

	Describe("Validate", func() {
		var cfg *config.Config

		BeforeEach(func() {
			cfg = config.Default()
		})

		It("should reject an unsupported register width", func() {
			cfg.Hart.XLEN = 16
			err := cfg.Validate()

			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Path).To(Equal("hart.xlen"))
			Expect(err.Error()).To(ContainSubstring("must be 32 or 64"))
		})

		It("should reject lowercase extension letters", func() {
			cfg.Hart.Extensions = "imasu"
			err := cfg.Validate()

			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Path).To(Equal("hart.extensions"))
		})

		It("should require the base extension", func() {
			cfg.Hart.Extensions = "MAS"
			err := cfg.Validate()

			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Reason).To(ContainSubstring("base extension I"))
		})

		It("should reject an empty region", func() {
			cfg.Memory.Regions[0].Size = 0
			err := cfg.Validate()

			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Path).To(Equal("memory.regions[0].size"))
		})

		It("should reject overlapping regions", func() {
			cfg.Memory.Regions = append(cfg.Memory.Regions, config.RegionConfig{
				Name:  "shadow",
				Base:  cfg.Memory.Regions[0].Base + 0x1000,
				Size:  0x1000,
				Attrs: "rw",
			})
			err := cfg.Validate()

			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Path).To(Equal("memory.regions[1]"))
			Expect(verr.Reason).To(ContainSubstring("overlaps"))
		})

		It("should reject unknown attribute letters", func() {
			cfg.Memory.Regions[0].Attrs = "rwz"
			err := cfg.Validate()

			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Path).To(Equal("memory.regions[0].attrs"))
		})

		It("should reject a reset vector outside executable memory", func() {
			cfg.Hart.ResetVector = 0x1000
			err := cfg.Validate()

			var verr *config.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Path).To(Equal("hart.reset_vector"))
		})
	})

	Describe("Save", func() {
		It("should round-trip through a file", func() {
			cfg := config.Default()
			cfg.Hart.XLEN = 32
			cfg.Trace.Enabled = true

			path := filepath.Join(tempDir, "saved.yaml")
			Expect(cfg.Save(path)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})
	})

	Describe("Clone", func() {
		It("should not share region storage with the original", func() {
			cfg := config.Default()
			dup := cfg.Clone()
			dup.Memory.Regions[0].Name = "scratch"

			Expect(cfg.Memory.Regions[0].Name).To(Equal("ram"))
		})
	})
})
