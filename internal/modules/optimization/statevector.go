package optimization

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// circuit simulates a QAOA ansatz over n qubits on a dense state vector.
//
// The cost Hamiltonian is diagonal in the computational basis: basis state z
// carries the QUBO energy E(z) = z'Qz + offset, with bit i of z mapped to x_i.
// Each layer applies exp(-iγE) followed by RX(2β) on every qubit.
type circuit struct {
	n        int
	energies []float64
	scale    float64
	amps     []complex128
}

// newCircuit precomputes the energy of every basis state. Energies are built
// incrementally: E(z) = E(z without its lowest bit k) + Q_kk + 2·Σ_{j∈z, j≠k} Q_kj.
func newCircuit(q *mat.SymDense, offset float64) *circuit {
	n, _ := q.Dims()
	dim := 1 << uint(n)

	linear := make([]float64, dim)
	energies := make([]float64, dim)
	for z := 1; z < dim; z++ {
		k := lowestBit(uint64(z))
		rest := z &^ (1 << uint(k))

		delta := q.At(k, k)
		for j := 0; j < n; j++ {
			if j != k && rest&(1<<uint(j)) != 0 {
				delta += 2 * q.At(k, j)
			}
		}
		linear[z] = linear[rest] + delta
	}

	scale := 0.0
	for z := range energies {
		energies[z] = linear[z] + offset
		if a := math.Abs(energies[z]); a > scale {
			scale = a
		}
	}
	if scale == 0 {
		scale = 1
	}

	return &circuit{
		n:        n,
		energies: energies,
		scale:    scale,
		amps:     make([]complex128, dim),
	}
}

// dim returns the number of basis states.
func (c *circuit) dim() int {
	return len(c.amps)
}

// prepare resets the register to |+>^n and applies reps layers.
// params holds γ_1..γ_p followed by β_1..β_p.
func (c *circuit) prepare(params []float64, reps int) {
	uniform := complex(1/math.Sqrt(float64(c.dim())), 0)
	for z := range c.amps {
		c.amps[z] = uniform
	}

	for layer := 0; layer < reps; layer++ {
		c.applyCost(params[layer])
		c.applyMixer(params[reps+layer])
	}
}

// applyCost multiplies each amplitude by exp(-iγE(z)), with energies
// normalised so γ stays on a unit scale whatever the problem magnitude.
func (c *circuit) applyCost(gamma float64) {
	for z, e := range c.energies {
		c.amps[z] *= cmplx.Exp(complex(0, -gamma*e/c.scale))
	}
}

// applyMixer applies RX(2β) = [[cos β, -i sin β], [-i sin β, cos β]] to every qubit.
func (c *circuit) applyMixer(beta float64) {
	cos := complex(math.Cos(beta), 0)
	isin := complex(0, -math.Sin(beta))

	for qubit := 0; qubit < c.n; qubit++ {
		mask := 1 << uint(qubit)
		for z := range c.amps {
			if z&mask != 0 {
				continue
			}
			a, b := c.amps[z], c.amps[z|mask]
			c.amps[z] = cos*a + isin*b
			c.amps[z|mask] = isin*a + cos*b
		}
	}
}

// probabilities returns |ψ(z)|² for every basis state.
func (c *circuit) probabilities() []float64 {
	probs := make([]float64, len(c.amps))
	for z, a := range c.amps {
		re, im := real(a), imag(a)
		probs[z] = re*re + im*im
	}
	return probs
}

// expectation returns <ψ|H|ψ> in the original (unscaled) energy units.
func (c *circuit) expectation() float64 {
	var total float64
	for z, a := range c.amps {
		re, im := real(a), imag(a)
		total += (re*re + im*im) * c.energies[z]
	}
	return total
}

// groundStateReadout returns the lowest-energy basis state among those whose
// probability is at least the uniform 1/dim. Ties go to the more probable state.
func (c *circuit) groundStateReadout() (uint64, bool) {
	probs := c.probabilities()
	threshold := (1 - 1e-9) / float64(c.dim())

	best := -1
	for z, p := range probs {
		if math.IsNaN(p) || p < threshold {
			continue
		}
		if best < 0 ||
			c.energies[z] < c.energies[best] ||
			(c.energies[z] == c.energies[best] && p > probs[best]) {
			best = z
		}
	}
	if best < 0 {
		return 0, false
	}
	return uint64(best), true
}

func lowestBit(z uint64) int {
	k := 0
	for z&1 == 0 {
		z >>= 1
		k++
	}
	return k
}
