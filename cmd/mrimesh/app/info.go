package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mrimesh/pkg/mesh"
	"mrimesh/pkg/meshio"
)

type Info struct {
	cmd *cobra.Command

	mainopts  *Options
	tolerance float64
}

func NewInfo(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <mesh file>",
		Short: "print statistics of a mesh file",
		Args:  cobra.ExactArgs(1),
	}
	c := &Info{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args[0]) }
	cmd.Flags().Float64Var(&c.tolerance, "tolerance", 0, "vertex weld tolerance")
	return cmd
}

func (c *Info) Run(path string) error {
	if !c.cmd.Flags().Changed("tolerance") {
		c.tolerance = c.mainopts.Config().Mesh.Tolerance
	}

	m, err := meshio.Load(path, c.tolerance)
	if err != nil {
		return err
	}
	defer m.UnRegister()

	printInfo(c.cmd.OutOrStdout(), path, m)
	return nil
}

func printSummary(out io.Writer, name string, s mesh.Summary) {
	if s.Count == 0 {
		return
	}
	fmt.Fprintf(out, "%s: min %.4f, max %.4f, mean %.4f, stddev %.4f (%d)\n",
		name, s.Min, s.Max, s.Mean, s.StdDev, s.Count)
}

func printInfo(out io.Writer, path string, m *mesh.Mesh) {
	st := m.Statistics()

	fmt.Fprintf(out, "Mesh: %s\n", path)
	fmt.Fprintf(out, "================================\n")
	fmt.Fprintf(out, "Dimension: %d\n", st.Dimension)
	fmt.Fprintf(out, "Points: %d\n", st.Points)
	for dim, n := range st.CellsByDim {
		fmt.Fprintf(out, "Cells of dimension %d: %d\n", dim, n)
	}
	if box, ok := m.Bounds(); ok {
		fmt.Fprintf(out, "Bounds: (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n",
			box.Min.X, box.Min.Y, box.Min.Z, box.Max.X, box.Max.Y, box.Max.Z)
	}
	printSummary(out, "Edge length", st.EdgeLength)
	printSummary(out, "Triangle area", st.TriangleArea)
	fmt.Fprintf(out, "Surface area: %.4f\n", m.SurfaceArea())
	fmt.Fprintf(out, "Boundary edges: %d\n", st.BoundaryEdges)
	fmt.Fprintf(out, "Closed: %v\n", m.IsClosed())
	if m.IsClosed() {
		fmt.Fprintf(out, "Enclosed volume: %.4f\n", m.EnclosedVolume())
	}
	fmt.Fprintf(out, "Checksum: %016x\n", m.Checksum())
}
