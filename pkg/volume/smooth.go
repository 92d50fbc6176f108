package volume

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// lowPass applies a Gaussian low-pass filter to real sequences of a fixed length
// in the frequency domain. Sequences are padded by edge replication so the
// periodic transform does not blur one border into the other.
type lowPass struct {
	n, pad   int
	fft      *fourier.FFT
	response []float64
	norm     float64
	padded   []float64
	coeffs   []complex128
}

func newLowPass(n int, sigma float64) *lowPass {
	pad := int(math.Ceil(3 * sigma))
	size := n + 2*pad
	lp := &lowPass{
		n:        n,
		pad:      pad,
		fft:      fourier.NewFFT(size),
		response: make([]float64, size/2+1),
		padded:   make([]float64, size),
		coeffs:   make([]complex128, size/2+1),
	}
	for k := range lp.response {
		f := float64(k) / float64(size)
		lp.response[k] = math.Exp(-2 * math.Pi * math.Pi * sigma * sigma * f * f)
	}

	// The inverse transform is unnormalized; measure its gain on a constant
	for i := range lp.padded {
		lp.padded[i] = 1
	}
	lp.fft.Coefficients(lp.coeffs, lp.padded)
	lp.fft.Sequence(lp.padded, lp.coeffs)
	lp.norm = 1 / lp.padded[0]
	return lp
}

// apply filters seq in place.
func (lp *lowPass) apply(seq []float64) {
	for i := range lp.padded {
		j := min(max(i-lp.pad, 0), lp.n-1)
		lp.padded[i] = seq[j]
	}
	lp.fft.Coefficients(lp.coeffs, lp.padded)
	for k, r := range lp.response {
		lp.coeffs[k] *= complex(r, 0)
	}
	lp.fft.Sequence(lp.padded, lp.coeffs)
	for i := range seq {
		seq[i] = lp.padded[i+lp.pad] * lp.norm
	}
}

// Smooth denoises every slice in place with an in-plane Gaussian of standard
// deviation sigma voxels. Slices are filtered in parallel; sigma <= 0 does
// nothing.
func (v *Volume) Smooth(sigma float64) {
	if sigma <= 0 || v.Validate() != nil {
		return
	}

	jobs := make(chan int, v.Depth)
	for z := 0; z < v.Depth; z++ {
		jobs <- z
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < min(runtime.NumCPU(), v.Depth); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows := newLowPass(v.Width, sigma)
			cols := newLowPass(v.Height, sigma)
			row := make([]float64, v.Width)
			col := make([]float64, v.Height)
			for z := range jobs {
				v.smoothSlice(z, rows, cols, row, col)
			}
		}()
	}
	wg.Wait()

	log.WithField("sigma", sigma).Infof("smoothed %d slices", v.Depth)
}

func (v *Volume) smoothSlice(z int, rows, cols *lowPass, row, col []float64) {
	for y := 0; y < v.Height; y++ {
		base := v.Index(0, y, z)
		copy(row, v.Data[base:base+v.Width])
		rows.apply(row)
		copy(v.Data[base:base+v.Width], row)
	}
	for x := 0; x < v.Width; x++ {
		for y := 0; y < v.Height; y++ {
			col[y] = v.At(x, y, z)
		}
		cols.apply(col)
		for y := 0; y < v.Height; y++ {
			v.Set(x, y, z, col[y])
		}
	}
}
