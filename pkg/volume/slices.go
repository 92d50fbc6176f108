package volume

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"mrimesh/internal/logging"
)

var log = logging.For("volume")

var (
	ErrNoSlices      = errors.New("volume: no slice images found")
	ErrSliceMismatch = errors.New("volume: slice dimensions differ")
	ErrInvalidAxis   = errors.New("volume: invalid axis (must be x, y, or z)")
	ErrOutOfBounds   = errors.New("volume: position outside volume")
)

// LoadSlices reads the JPEG and PNG slices of a directory into a volume. Files are
// ordered by the number embedded in their name, so slice_2 comes before slice_10.
// Gray values are scaled to 0..1. sliceGap becomes the z spacing.
func LoadSlices(dir string, sliceGap float64) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read slice directory")
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrNoSlices, "in %s", dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	var v *Volume
	for z, name := range files {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "load slice %s", name)
		}
		b := img.Bounds()
		if v == nil {
			v = New(b.Dx(), b.Dy(), len(files))
			if sliceGap > 0 {
				v.Spacing.Z = sliceGap
			}
		} else if b.Dx() != v.Width || b.Dy() != v.Height {
			return nil, errors.Wrapf(ErrSliceMismatch, "%s is %dx%d, expected %dx%d",
				name, b.Dx(), b.Dy(), v.Width, v.Height)
		}
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				gray := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				v.Set(x, y, z, float64(gray.Y)/65535.0)
			}
		}
	}

	log.WithField("slices", v.Depth).Infof("loaded %dx%d slices, gap %.1f mm", v.Width, v.Height, v.Spacing.Z)
	return v, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	return img, err
}

// ExtractSlice extracts a 2D slice along the given axis: "x" gives a YZ plane,
// "y" an XZ plane and "z" an XY plane. Values are clamped to 0..1.
func (v *Volume) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, errors.Wrapf(ErrOutOfBounds, "position %d", position)
	}

	gray := func(value float64) color.Gray16 {
		return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, value*65535)))}
	}

	var img *image.Gray16
	switch strings.ToLower(axis) {
	case "x":
		if position >= v.Width {
			return nil, errors.Wrapf(ErrOutOfBounds, "position %d exceeds width %d", position, v.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Depth, v.Height))
		for y := 0; y < v.Height; y++ {
			for z := 0; z < v.Depth; z++ {
				img.SetGray16(z, y, gray(v.At(position, y, z)))
			}
		}

	case "y":
		if position >= v.Height {
			return nil, errors.Wrapf(ErrOutOfBounds, "position %d exceeds height %d", position, v.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Width, v.Depth))
		for z := 0; z < v.Depth; z++ {
			for x := 0; x < v.Width; x++ {
				img.SetGray16(x, z, gray(v.At(x, position, z)))
			}
		}

	case "z":
		if position >= v.Depth {
			return nil, errors.Wrapf(ErrOutOfBounds, "position %d exceeds depth %d", position, v.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Width, v.Height))
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				img.SetGray16(x, y, gray(v.At(x, y, position)))
			}
		}

	default:
		return nil, errors.Wrapf(ErrInvalidAxis, "%q", axis)
	}

	return img, nil
}

// SaveSliceSequence extracts every slice along axis and writes them as JPEG files
// named slice_<axis>_<pos>.jpg. It returns the number of files written.
func (v *Volume) SaveSliceSequence(axis string, outputDir string) (int, error) {
	var count int
	switch strings.ToLower(axis) {
	case "x":
		count = v.Width
	case "y":
		count = v.Height
	case "z":
		count = v.Depth
	default:
		return 0, errors.Wrapf(ErrInvalidAxis, "%q", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, errors.Wrap(err, "create slice directory")
	}

	for pos := 0; pos < count; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", strings.ToLower(axis), pos))
		if err := saveJPEG(img, filename); err != nil {
			return pos, errors.Wrapf(err, "save %s", filename)
		}
	}
	return count, nil
}

func saveJPEG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
