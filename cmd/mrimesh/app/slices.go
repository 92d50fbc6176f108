package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"mrimesh/internal/logging"
	"mrimesh/pkg/volume"
)

type Slices struct {
	cmd *cobra.Command

	mainopts *Options
	input    string
	axis     string
	output   string
	sliceGap float64
}

func NewSlices(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slices --input <dir> <options>",
		Short: "resample a slice stack along another axis",
		Args:  cobra.NoArgs,
	}
	c := &Slices{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run() }

	flags := cmd.Flags()
	flags.StringVarP(&c.input, "input", "i", "", "directory containing 2D MRI slices")
	flags.StringVarP(&c.axis, "axis", "a", "all", "axis to slice along: x, y, z or all")
	flags.StringVarP(&c.output, "output", "o", "slices", "output directory")
	flags.Float64Var(&c.sliceGap, "gap", 0, "inter-slice gap in mm")
	cmd.MarkFlagRequired("input")
	return cmd
}

func (c *Slices) Run() error {
	if !c.cmd.Flags().Changed("gap") {
		c.sliceGap = c.mainopts.Config().Processing.SliceGap
	}
	out := c.cmd.OutOrStdout()

	vol, err := volume.LoadSlices(c.input, c.sliceGap)
	if err != nil {
		return err
	}
	vol.Normalize()

	axes := []string{c.axis}
	if c.axis == "all" {
		axes = []string{"x", "y", "z"}
	}

	for _, axis := range axes {
		dir := c.output
		if len(axes) > 1 {
			dir = filepath.Join(c.output, axis)
		}
		fmt.Fprintf(out, "Saving %s-axis slices to: %s\n", axis, dir)
		n, err := vol.SaveSliceSequence(axis, dir)
		if err != nil {
			if len(axes) == 1 {
				return err
			}
			logging.For("cli").WithError(err).Warnf("failed to save %s-axis slices", axis)
			continue
		}
		fmt.Fprintf(out, "- %d slices\n", n)
	}
	fmt.Fprintln(out, "Slice extraction completed!")
	return nil
}
