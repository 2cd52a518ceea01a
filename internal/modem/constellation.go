package modem

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// Modulation identifies a supported QAM modulation scheme.
type Modulation int

const (
	ModQPSK  Modulation = 2 // 2 bits per symbol
	Mod16QAM Modulation = 4 // 4 bits per symbol
)

// BitsPerSymbol returns the number of bits carried by one symbol.
func (m Modulation) BitsPerSymbol() int {
	return int(m)
}

// Order returns the constellation size M.
func (m Modulation) Order() int {
	return 1 << uint(m)
}

// String returns the modulation name.
func (m Modulation) String() string {
	switch m {
	case ModQPSK:
		return "QPSK"
	case Mod16QAM:
		return "16-QAM"
	default:
		return "Unknown"
	}
}

// ParseModulation parses a modulation name such as "qpsk" or "16-QAM".
func ParseModulation(s string) (Modulation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QPSK", "4QAM", "4-QAM":
		return ModQPSK, nil
	case "16QAM", "16-QAM":
		return Mod16QAM, nil
	default:
		return 0, fmt.Errorf("unknown modulation %q", s)
	}
}

// Constellation holds Gray-coded QAM constellation points, normalized to
// unit average power, and the bit label attached to each point.
type Constellation struct {
	Mod    Modulation
	points []complex128
	labels [][]byte
	scale  float64 // normalization factor applied to the raw grid
}

// NewConstellation builds the fixed constellation for the given modulation.
func NewConstellation(mod Modulation) *Constellation {
	c := &Constellation{Mod: mod}
	switch mod {
	case Mod16QAM:
		c.generateQAM(4) // 4x4 grid
	default:
		c.generateQAM(2) // 2x2 grid
	}
	c.normalize()

	// Bit label of point i is the binary expansion of i. Gray coding lives
	// in the geometric placement: adjacent points have indices differing in
	// exactly one bit.
	bps := c.Mod.BitsPerSymbol()
	c.labels = make([][]byte, len(c.points))
	for i := range c.points {
		c.labels[i] = indexToBits(i, bps)
	}
	return c
}

func (c *Constellation) generateQAM(order int) {
	// Square QAM grid with Gray-coded row/column placement. One bit half
	// of the label selects the row, the other the column, so geometric
	// neighbors differ in exactly one label bit. For the 2x2 grid this is
	// the classical Gray QPSK: 00, 01, 11, 10 around the quadrants.
	size := order * order
	c.points = make([]complex128, size)

	for i := 0; i < size; i++ {
		row := i / order
		col := i % order

		grayRow := row ^ (row >> 1)
		grayCol := col ^ (col >> 1)

		// Odd coordinates: -3, -1, 1, 3 for a 4x4 grid
		x := float64(2*grayCol - order + 1)
		y := float64(2*grayRow - order + 1)

		c.points[i] = complex(x, y)
	}
}

func (c *Constellation) normalize() {
	var avgPower float64
	for _, p := range c.points {
		avgPower += real(p)*real(p) + imag(p)*imag(p)
	}
	avgPower /= float64(len(c.points))

	c.scale = 1.0 / math.Sqrt(avgPower)
	for i := range c.points {
		c.points[i] = complex(real(c.points[i])*c.scale, imag(c.points[i])*c.scale)
	}
}

// Size returns the number of constellation points.
func (c *Constellation) Size() int {
	return len(c.points)
}

// Symbol returns the complex value of point i.
func (c *Constellation) Symbol(i int) complex128 {
	return c.points[i]
}

// BitLabel returns the bit label (0/1 bytes) of point i.
func (c *Constellation) BitLabel(i int) []byte {
	return c.labels[i]
}

// AvgPower returns the mean squared magnitude of the constellation.
// After normalization this is 1 up to floating-point error.
func (c *Constellation) AvgPower() float64 {
	var p float64
	for _, s := range c.points {
		p += real(s)*real(s) + imag(s)*imag(s)
	}
	return p / float64(len(c.points))
}

// DetectIndex performs minimum-distance detection of a received sample.
// Ties go to the lowest index.
func (c *Constellation) DetectIndex(sample complex128) int {
	minDist := math.MaxFloat64
	minIdx := 0

	for i, p := range c.points {
		dr := real(sample) - real(p)
		di := imag(sample) - imag(p)
		d := dr*dr + di*di
		if d < minDist {
			minDist = d
			minIdx = i
		}
	}
	return minIdx
}

// BitErrors returns the Hamming distance between the bit labels of two
// constellation indices.
func (c *Constellation) BitErrors(tx, rx int) int {
	return bits.OnesCount(uint(tx ^ rx))
}

func indexToBits(idx, numBits int) []byte {
	out := make([]byte, numBits)
	for i := numBits - 1; i >= 0; i-- {
		out[i] = byte(idx & 1)
		idx >>= 1
	}
	return out
}
