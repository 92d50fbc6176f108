package volume

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientVolume fills each z slice with a unique value
func gradientVolume(width, height, depth int) *Volume {
	v := New(width, height, depth)
	for z := 0; z < depth; z++ {
		value := float64(z) / float64(depth)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v.Set(x, y, z, value)
			}
		}
	}
	return v
}

func TestNewAndValidate(t *testing.T) {
	v := New(4, 3, 2)
	require.NoError(t, v.Validate())
	assert.Len(t, v.Data, 24)
	assert.Equal(t, Spacing{X: 1, Y: 1, Z: 1}, v.Spacing)

	v.Set(3, 2, 1, 0.5)
	assert.Equal(t, 0.5, v.At(3, 2, 1))
	assert.Equal(t, 23, v.Index(3, 2, 1))

	v.Data = v.Data[:10]
	assert.True(t, errors.Is(v.Validate(), ErrShape))
	assert.True(t, errors.Is((&Volume{}).Validate(), ErrShape))
}

func TestNormalize(t *testing.T) {
	v := New(2, 1, 1)
	v.Data = []float64{10, 30}
	v.Normalize()
	assert.Equal(t, []float64{0, 1}, v.Data)

	flat := New(2, 1, 1)
	flat.Data = []float64{5, 5}
	flat.Normalize()
	assert.Equal(t, []float64{0, 0}, flat.Data)
}

func TestChecksum(t *testing.T) {
	a := Sphere(8, 2)
	b := Sphere(8, 2)
	assert.Equal(t, a.Checksum(), b.Checksum())

	b.Spacing.Z = 2
	assert.NotEqual(t, a.Checksum(), b.Checksum())
}

func TestSphere(t *testing.T) {
	v := Sphere(20, 5)
	assert.Equal(t, 1.0, v.At(10, 10, 10))
	assert.Equal(t, 0.0, v.At(0, 0, 0))

	inside := 0
	for _, value := range v.Data {
		if value > 0 {
			inside++
		}
	}
	// Roughly 4/3 pi r^3 voxels
	assert.InDelta(t, 4.0/3.0*math.Pi*125, float64(inside), 60)
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 10, 5
	v := gradientVolume(width, height, depth)

	for z := 0; z < depth; z++ {
		img, err := v.ExtractSlice("z", z)
		require.NoError(t, err)

		bounds := img.Bounds()
		assert.Equal(t, width, bounds.Dx())
		assert.Equal(t, height, bounds.Dy())

		expected := uint16(float64(z) / float64(depth) * 65535)
		assert.InDelta(t, float64(expected), float64(img.Gray16At(width/2, height/2).Y), 1.0)
	}

	imgX, err := v.ExtractSlice("X", width/2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, depth, height), imgX.Bounds())

	imgY, err := v.ExtractSlice("y", height/2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, width, depth), imgY.Bounds())

	_, err = v.ExtractSlice("w", 0)
	assert.True(t, errors.Is(err, ErrInvalidAxis))
	_, err = v.ExtractSlice("z", depth)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	_, err = v.ExtractSlice("z", -1)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestSaveSliceSequence(t *testing.T) {
	v := gradientVolume(6, 4, 3)
	dir := t.TempDir()

	n, err := v.SaveSliceSequence("y", dir)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for pos := 0; pos < 4; pos++ {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("slice_y_%03d.jpg", pos)))
		assert.NoError(t, err)
	}

	_, err = v.SaveSliceSequence("q", dir)
	assert.True(t, errors.Is(err, ErrInvalidAxis))
}

func writeSlice(t *testing.T, path string, width, height int, value uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if filepath.Ext(path) == ".png" {
		require.NoError(t, png.Encode(f, img))
		return
	}
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 100}))
}

func TestLoadSlicesOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	// Written out of order; slice_10 must come last
	writeSlice(t, filepath.Join(dir, "slice_10.png"), 5, 4, 65535)
	writeSlice(t, filepath.Join(dir, "slice_2.png"), 5, 4, 0)
	writeSlice(t, filepath.Join(dir, "slice_3.jpg"), 5, 4, 32768)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))

	v, err := LoadSlices(dir, 2.5)
	require.NoError(t, err)

	assert.Equal(t, 5, v.Width)
	assert.Equal(t, 4, v.Height)
	assert.Equal(t, 3, v.Depth)
	assert.Equal(t, 2.5, v.Spacing.Z)

	assert.InDelta(t, 0.0, v.At(1, 1, 0), 1e-9)
	assert.InDelta(t, 0.5, v.At(1, 1, 1), 0.02)
	assert.InDelta(t, 1.0, v.At(1, 1, 2), 1e-9)
}

func TestLoadSlicesErrors(t *testing.T) {
	empty := t.TempDir()
	_, err := LoadSlices(empty, 1)
	assert.True(t, errors.Is(err, ErrNoSlices))

	_, err = LoadSlices(filepath.Join(empty, "missing"), 1)
	assert.Error(t, err)

	mixed := t.TempDir()
	writeSlice(t, filepath.Join(mixed, "a1.png"), 5, 4, 0)
	writeSlice(t, filepath.Join(mixed, "a2.png"), 6, 4, 0)
	_, err = LoadSlices(mixed, 1)
	assert.True(t, errors.Is(err, ErrSliceMismatch))
}

func TestExtractNumber(t *testing.T) {
	assert.Equal(t, 12, extractNumber("img_012.jpg"))
	assert.Equal(t, 0, extractNumber("scan.jpg"))
	assert.Equal(t, 7, extractNumber(filepath.Join("dir1", "s7.png")))
}
