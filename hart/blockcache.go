package hart

import "fmt"

// sentinelPC marks an unpopulated block slot. Instruction addresses
// are at least halfword aligned, so an odd all-ones value can never
// match a real fetch address.
const sentinelPC = ^uint64(0)

// BlockCapacity is the most instructions one decoded block holds.
const BlockCapacity = 32

// DefaultNumBlocks is the default slot count of the block cache.
const DefaultNumBlocks = 1024

// Block is one straight-line run of decoded instructions starting at a
// fixed address. Blocks live in cache slots that are recycled in
// place, never individually allocated or freed; a block's contents are
// only meaningful while its start address matches the address the
// cache was asked for.
type Block struct {
	startPC    uint64
	insts      [BlockCapacity]Instruction
	count      int
	cursor     int
	terminated bool
}

// StartPC returns the address the block was decoded from. A fresh or
// invalidated slot reports the sentinel, which matches no real
// address.
func (b *Block) StartPC() uint64 { return b.startPC }

// Size returns the number of decoded instructions in the block.
func (b *Block) Size() int { return b.count }

// Complete reports whether the block can take no more instructions:
// either its capacity is reached or a control-flow-changing
// instruction terminated it.
func (b *Block) Complete() bool {
	return b.terminated || b.count == BlockCapacity
}

// Recycle reseats the slot at a new start address, clearing the
// instruction count and the replay cursor.
func (b *Block) Recycle(pc uint64) {
	b.startPC = pc
	b.count = 0
	b.cursor = 0
	b.terminated = false
}

// Append adds the next decoded instruction. Appending to a complete
// block is a caller bug.
func (b *Block) Append(inst Instruction) {
	if b.Complete() {
		panic(fmt.Sprintf("hart: append to a complete block at %#x", b.startPC))
	}
	b.insts[b.count] = inst
	b.count++
	if inst.ChangesControlFlow() {
		b.terminated = true
	}
}

// Rewind resets the replay cursor to the block start.
func (b *Block) Rewind() { b.cursor = 0 }

// Next pops the instruction under the cursor and advances it. The
// caller must not pop past Size; bounds are not checked here.
func (b *Block) Next() Instruction {
	inst := b.insts[b.cursor]
	b.cursor++
	return inst
}

// Exhausted reports whether the cursor has passed the last decoded
// instruction.
func (b *Block) Exhausted() bool { return b.cursor >= b.count }

// Statistics holds block cache performance counters.
type Statistics struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	Invalidations uint64
}

// BlockCache is a direct-mapped cache of decoded blocks, indexed by
// bits of the start address. It is hart-private; no locking.
type BlockCache struct {
	blocks []Block
	mask   uint64
	stats  Statistics
}

// NewBlockCache returns a cache with numBlocks slots, which must be a
// power of two, all primed to miss.
func NewBlockCache(numBlocks int) *BlockCache {
	if numBlocks <= 0 || numBlocks&(numBlocks-1) != 0 {
		panic(fmt.Sprintf("hart: block cache size %d is not a power of two", numBlocks))
	}
	c := &BlockCache{
		blocks: make([]Block, numBlocks),
		mask:   uint64(numBlocks - 1),
	}
	c.Invalidate()
	c.stats = Statistics{}
	return c
}

// Get returns the slot serving pc unconditionally. The caller must
// compare the returned block's StartPC against pc: a mismatch is a
// miss and the slot's contents belong to some other address until
// Recycle reseats it.
func (c *BlockCache) Get(pc uint64) *Block {
	c.stats.Lookups++
	b := &c.blocks[(pc>>2)&c.mask]
	if b.startPC == pc && b.count > 0 {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return b
}

// Invalidate points every slot at the sentinel so each future Get
// misses. Required whenever decoded semantics could be stale: writes
// to the instruction stream, translation changes that affect fetch, or
// a CSR write that changes decode behavior.
func (c *BlockCache) Invalidate() {
	c.stats.Invalidations++
	for i := range c.blocks {
		b := &c.blocks[i]
		b.startPC = sentinelPC
		b.count = 0
		b.cursor = 0
		b.terminated = false
	}
}

// Len returns the slot count.
func (c *BlockCache) Len() int { return len(c.blocks) }

// Stats returns the cache's performance counters.
func (c *BlockCache) Stats() Statistics {
	return c.stats
}

// ResetStats clears the performance counters.
func (c *BlockCache) ResetStats() {
	c.stats = Statistics{}
}
