package padsp

/*------------------------------------------------------------------
 *
 * Purpose: Dither generator (C2) — a stateful triangular-PDF noise
 *	source, one instance per stream, invoked only by narrowing
 *	converters when dithering is enabled. Not thread-safe; the host
 *	loop guarantees single-threaded use within one stream.
 *
 *---------------------------------------------------------------*/

// ditherSeed1Init and ditherSeed2Init are arbitrary nonzero starting
// states for the two LCG streams. Any nonzero seed works; these just
// avoid both streams starting in lock-step.
const (
	ditherSeed1Init uint32 = 22222
	ditherSeed2Init uint32 = 99999

	// LCG multiplier/increment pair borrowed from the generator used
	// throughout the reference engine's triangular dither.
	ditherLCGMul uint32 = 196314165
	ditherLCGInc uint32 = 907633515
)

// DitherGenerator produces triangular-PDF noise in the approximate range
// ±0x7FFF, with a one-pole noise-shaping differentiator applied via the
// previous-sample state. One instance lives per stream buffer processor.
type DitherGenerator struct {
	seed1, seed2 uint32
	previous     int32
}

// NewDitherGenerator returns a generator ready for use.
func NewDitherGenerator() *DitherGenerator {
	return &DitherGenerator{seed1: ditherSeed1Init, seed2: ditherSeed2Init}
}

// Reset restores the generator to its initial state, done whenever a
// stream's buffer processor is reset at Start.
func (g *DitherGenerator) Reset() {
	g.seed1 = ditherSeed1Init
	g.seed2 = ditherSeed2Init
	g.previous = 0
}

func (g *DitherGenerator) uniform16() int32 {
	g.seed1 = g.seed1*ditherLCGMul + ditherLCGInc
	return int32(uint16(g.seed1 >> 16))
}

// Generate returns the next triangular-PDF, noise-shaped sample. Two
// successive uniform deviates from the LCG are subtracted to produce a
// triangular distribution in roughly [-0xFFFF, 0xFFFF], halved, then
// high-pass shaped against the previous output to push quantization
// noise toward inaudible frequencies. The shaped difference is halved
// again so the result stays in the documented ±0x7FFF range.
func (g *DitherGenerator) Generate() int32 {
	g.seed2 = g.seed2*ditherLCGMul + ditherLCGInc
	u2 := int32(uint16(g.seed2 >> 16))
	u1 := g.uniform16()

	triangular := (u1 - u2) >> 1
	shaped := (triangular - g.previous) >> 1
	g.previous = triangular
	return shaped
}
