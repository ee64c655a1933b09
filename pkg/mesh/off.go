package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mcortz/meshlens/internal/models"
)

// EncodeOFF writes the indexed mesh in OFF text layout: the header token,
// a counts line, one line per vertex, one line per face prefixed with its
// arity. Coordinates are formatted with the shortest representation that
// round-trips the value, so encoding is byte-reproducible.
func EncodeOFF(w io.Writer, m *models.IndexedMesh) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "OFF\n%d %d 0\n", len(m.Verts), len(m.Faces))
	for _, v := range m.Verts {
		fmt.Fprintf(bw, "%s %s %s\n", coord(v.X), coord(v.Y), coord(v.Z))
	}
	for _, f := range m.Faces {
		fmt.Fprintf(bw, "3 %d %d %d\n", f[0], f[1], f[2])
	}
	return bw.Flush()
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ConvertSTL decodes src, welds it and writes the OFF document to dst.
// A partially written dst is removed before the error is returned.
func ConvertSTL(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open mesh %s: %v", src, err)
	}
	defer in.Close()

	tris, err := Decode(in)
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", dst, err)
	}

	if err := EncodeOFF(out, Weld(tris)); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to write %s: %v", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to close %s: %v", dst, err)
	}
	return nil
}
