package hart_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riscv-software-src/hartsim/hart"
)

var _ = Describe("BlockCache", func() {
	Describe("construction", func() {
		It("should require a power-of-two slot count", func() {
			Expect(func() { hart.NewBlockCache(0) }).To(Panic())
			Expect(func() { hart.NewBlockCache(3) }).To(Panic())
			Expect(func() { hart.NewBlockCache(-4) }).To(Panic())
		})

		It("should report its slot count", func() {
			Expect(hart.NewBlockCache(8).Len()).To(Equal(8))
			Expect(hart.NewBlockCache(1).Len()).To(Equal(1))
		})

		It("should start with zeroed counters", func() {
			Expect(hart.NewBlockCache(8).Stats()).To(Equal(hart.Statistics{}))
		})
	})

	Describe("block assembly", func() {
		var (
			c *hart.BlockCache
			b *hart.Block
		)

		BeforeEach(func() {
			c = hart.NewBlockCache(8)
			b = c.Get(0x40)
			b.Recycle(0x40)
		})

		It("should seat the block at the recycled pc", func() {
			Expect(b.StartPC()).To(Equal(uint64(0x40)))
			Expect(b.Size()).To(Equal(0))
			Expect(b.Complete()).To(BeFalse())
		})

		It("should grow until a control-flow change ends it", func() {
			b.Append(&fakeInst{})
			b.Append(&fakeInst{})
			Expect(b.Complete()).To(BeFalse())

			b.Append(&fakeInst{cf: true})

			Expect(b.Size()).To(Equal(3))
			Expect(b.Complete()).To(BeTrue())
		})

		It("should end at capacity even without a control-flow change", func() {
			for i := 0; i < hart.BlockCapacity; i++ {
				b.Append(&fakeInst{})
			}

			Expect(b.Size()).To(Equal(hart.BlockCapacity))
			Expect(b.Complete()).To(BeTrue())
		})

		It("should refuse appends past completion", func() {
			b.Append(&fakeInst{cf: true})

			Expect(func() { b.Append(&fakeInst{}) }).To(Panic())
		})

		It("should replay instructions in append order", func() {
			first := &fakeInst{}
			second := &fakeInst{cf: true}
			b.Append(first)
			b.Append(second)

			b.Rewind()

			Expect(b.Exhausted()).To(BeFalse())
			Expect(b.Next()).To(BeIdenticalTo(first))
			Expect(b.Next()).To(BeIdenticalTo(second))
			Expect(b.Exhausted()).To(BeTrue())
		})

		It("should replay again after a rewind", func() {
			first := &fakeInst{}
			b.Append(first)
			b.Rewind()
			b.Next()

			b.Rewind()

			Expect(b.Next()).To(BeIdenticalTo(first))
		})

		It("should recycle for a different address", func() {
			b.Append(&fakeInst{})

			b.Recycle(0x80)

			Expect(b.StartPC()).To(Equal(uint64(0x80)))
			Expect(b.Size()).To(Equal(0))
			Expect(b.Complete()).To(BeFalse())
		})
	})

	Describe("mapping", func() {
		var c *hart.BlockCache

		BeforeEach(func() {
			c = hart.NewBlockCache(8)
		})

		It("should map aliasing addresses onto one slot", func() {
			// 8 slots cover pc bits [4:2]; 0x0 and 0x80 collide
			Expect(c.Get(0x0)).To(BeIdenticalTo(c.Get(0x80)))
		})

		It("should map adjacent words onto distinct slots", func() {
			Expect(c.Get(0x0)).NotTo(BeIdenticalTo(c.Get(0x4)))
		})

		It("should evict the previous tenant on recycle", func() {
			b := c.Get(0x0)
			b.Recycle(0x0)
			b.Append(&fakeInst{cf: true})

			b.Recycle(0x80)
			b.Append(&fakeInst{cf: true})

			got := c.Get(0x0)
			Expect(got.StartPC()).NotTo(Equal(uint64(0x0)))
		})
	})

	Describe("invalidation", func() {
		It("should make every future lookup miss", func() {
			c := hart.NewBlockCache(8)
			b := c.Get(0x40)
			b.Recycle(0x40)
			b.Append(&fakeInst{cf: true})

			c.Invalidate()

			got := c.Get(0x40)
			Expect(got.StartPC()).NotTo(Equal(uint64(0x40)))
			Expect(got.Size()).To(Equal(0))
		})
	})

	Describe("statistics", func() {
		var c *hart.BlockCache

		BeforeEach(func() {
			c = hart.NewBlockCache(8)
		})

		It("should classify lookups the way the run loop does", func() {
			b := c.Get(0x40) // miss: fresh slot
			b.Recycle(0x40)
			b.Append(&fakeInst{cf: true})
			c.Get(0x40) // hit
			c.Get(0x44) // miss: different slot

			stats := c.Stats()
			Expect(stats.Lookups).To(Equal(uint64(3)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(2)))
		})

		It("should count an empty recycled slot as a miss", func() {
			b := c.Get(0x40)
			b.Recycle(0x40)

			c.Get(0x40)

			Expect(c.Stats().Hits).To(Equal(uint64(0)))
			Expect(c.Stats().Misses).To(Equal(uint64(2)))
		})

		It("should count invalidations", func() {
			c.Invalidate()
			c.Invalidate()

			Expect(c.Stats().Invalidations).To(Equal(uint64(2)))
		})

		It("should clear on reset", func() {
			c.Get(0x40)
			c.Invalidate()

			c.ResetStats()

			Expect(c.Stats()).To(Equal(hart.Statistics{}))
		})
	})
})
