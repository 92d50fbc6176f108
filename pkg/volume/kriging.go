package volume

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// VariogramModel selects the semivariance function used by kriging.
type VariogramModel int

const (
	Gaussian VariogramModel = iota
	Exponential
	Spherical
)

// KrigingParams control the inter-slice interpolation.
type KrigingParams struct {
	Model     VariogramModel
	Range     float64 // distance in mm at which values become uncorrelated
	Sill      float64
	Nugget    float64
	Neighbors int // slices used per estimate
}

// DefaultKrigingParams fits a Gaussian variogram to the slice gap.
func DefaultKrigingParams(sliceGap float64) KrigingParams {
	return KrigingParams{
		Model:     Gaussian,
		Range:     3 * sliceGap,
		Sill:      1,
		Nugget:    1e-6,
		Neighbors: 4,
	}
}

func (p KrigingParams) variogram(h float64) float64 {
	if h == 0 {
		return 0
	}
	gamma := p.Nugget
	switch p.Model {
	case Spherical:
		if h < p.Range {
			r := h / p.Range
			gamma += p.Sill * (1.5*r - 0.5*r*r*r)
		} else {
			gamma += p.Sill
		}
	case Exponential:
		gamma += p.Sill * (1 - math.Exp(-3*h/p.Range))
	default:
		gamma += p.Sill * (1 - math.Exp(-3*h*h/(p.Range*p.Range)))
	}
	return gamma
}

// krigingWeights solves the ordinary kriging system for an estimate at z from
// samples at positions. The weights sum to one.
func (p KrigingParams) krigingWeights(positions []float64, z float64) ([]float64, error) {
	n := len(positions)
	a := mat.NewDense(n+1, n+1, nil)
	b := mat.NewVecDense(n+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, p.variogram(math.Abs(positions[i]-positions[j])))
		}
		// regularization keeps the Gaussian model well conditioned
		a.Set(i, i, a.At(i, i)+1e-9)
		a.Set(i, n, 1)
		a.Set(n, i, 1)
		b.SetVec(i, p.variogram(math.Abs(positions[i]-z)))
	}
	b.SetVec(n, 1)

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, errors.Wrap(err, "solve kriging system")
		}
		log.WithField("condition", float64(cond)).Warn("ill-conditioned kriging system")
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = x.AtVec(i)
	}
	return w, nil
}

// nearestSlices returns the indices of the k consecutive slices around z.
func nearestSlices(depth int, gap, z float64, k int) []int {
	k = min(k, depth)
	below := int(math.Floor(z / gap))
	lo := min(max(below-(k-1)/2, 0), depth-k)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = lo + i
	}
	return idx
}

// ResampleZ returns a new volume whose slices are spacing mm apart, estimating
// the new slices by ordinary kriging along z from the nearest input slices.
// Slices that coincide with input slices are copied. The in-plane grid is
// unchanged.
func (v *Volume) ResampleZ(spacing float64, params KrigingParams) (*Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if spacing <= 0 || params.Range <= 0 || params.Neighbors < 1 {
		return nil, errors.Errorf("invalid resampling: spacing %g, range %g, %d neighbors",
			spacing, params.Range, params.Neighbors)
	}

	gap := v.Spacing.Z
	extent := float64(v.Depth-1) * gap
	depth := int(math.Floor(extent/spacing+1e-9)) + 1

	out := New(v.Width, v.Height, depth)
	out.Spacing = Spacing{X: v.Spacing.X, Y: v.Spacing.Y, Z: spacing}
	plane := v.Width * v.Height

	for zi := 0; zi < depth; zi++ {
		z := float64(zi) * spacing
		dst := out.Data[zi*plane : (zi+1)*plane]

		src := z / gap
		if s := math.Round(src); math.Abs(src-s) < 1e-9 {
			si := int(s)
			copy(dst, v.Data[si*plane:(si+1)*plane])
			continue
		}

		idx := nearestSlices(v.Depth, gap, z, params.Neighbors)
		positions := make([]float64, len(idx))
		for i, si := range idx {
			positions[i] = float64(si) * gap
		}
		weights, err := params.krigingWeights(positions, z)
		if err != nil {
			return nil, errors.Wrapf(err, "slice %d", zi)
		}
		for i, si := range idx {
			w := weights[i]
			srcPlane := v.Data[si*plane : (si+1)*plane]
			for j := range dst {
				dst[j] += w * srcPlane[j]
			}
		}
	}

	log.WithField("slices", depth).Infof("resampled %d slices to %.2f mm spacing", v.Depth, spacing)
	return out, nil
}
