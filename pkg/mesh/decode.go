package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/mcortz/meshlens/internal/models"
)

// ErrMalformed is returned when the byte stream cannot be parsed as a
// sequence of STL triangle records. Malformed geometry (degenerate or
// non-manifold triangles) is not checked here and passes through.
var ErrMalformed = errors.New("malformed mesh input")

const binTriangleSize = 4*3*4 + 2 // 12 float32 coordinates plus attribute count

// Decode parses an STL byte stream, binary or ASCII, into its triangles.
// The variant is sniffed from the content: a leading "solid" token with a
// facet body reads as ASCII, everything else as binary.
func Decode(r io.Reader) ([]models.Triangle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh input: %v", err)
	}

	if looksASCII(data) {
		return decodeASCII(data)
	}
	return decodeBinary(data)
}

func looksASCII(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return false
	}
	// Binary files are free to start their 80-byte header with "solid",
	// so require an ASCII keyword further in before committing.
	return bytes.Contains(data, []byte("facet")) || bytes.Contains(data, []byte("endsolid"))
}

func decodeBinary(data []byte) ([]models.Triangle, error) {
	if len(data) < 84 {
		return nil, fmt.Errorf("%w: binary STL shorter than its 84-byte header", ErrMalformed)
	}

	count := binary.LittleEndian.Uint32(data[80:84])
	body := data[84:]
	if uint64(len(body)) < uint64(count)*binTriangleSize {
		return nil, fmt.Errorf("%w: binary STL declares %d triangles but carries %d bytes", ErrMalformed, count, len(body))
	}

	tris := make([]models.Triangle, 0, count)
	for i := 0; i < int(count); i++ {
		rec := body[i*binTriangleSize:]
		var t models.Triangle
		t.Normal = readVec3(rec, 0)
		for v := 0; v < 3; v++ {
			t.V[v] = readVec3(rec, 12+12*v)
		}
		tris = append(tris, t)
	}
	return tris, nil
}

func readVec3(b []byte, off int) models.Vec3 {
	return models.Vec3{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off+4:]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off+8:]))),
	}
}

// decodeASCII walks the token stream of an ASCII STL body:
// solid ... (facet normal x y z, outer loop, vertex x y z ×3, endloop, endfacet)* endsolid
func decodeASCII(data []byte) ([]models.Triangle, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}

	if tok, ok := next(); !ok || tok != "solid" {
		return nil, fmt.Errorf("%w: ASCII STL does not begin with solid", ErrMalformed)
	}

	var tris []models.Triangle
	for {
		tok, ok := next()
		if !ok {
			return nil, fmt.Errorf("%w: ASCII STL truncated before endsolid", ErrMalformed)
		}
		switch tok {
		case "facet":
			t, err := decodeFacet(next)
			if err != nil {
				return nil, err
			}
			tris = append(tris, t)
		case "endsolid":
			return tris, nil
		default:
			// Tokens between "solid" and the first facet are the solid name.
			if len(tris) > 0 {
				return nil, fmt.Errorf("%w: unexpected token %q in ASCII STL", ErrMalformed, tok)
			}
		}
	}
}

func decodeFacet(next func() (string, bool)) (models.Triangle, error) {
	var t models.Triangle

	if err := expect(next, "normal"); err != nil {
		return t, err
	}
	n, err := readCoords(next)
	if err != nil {
		return t, err
	}
	t.Normal = n

	if err := expect(next, "outer"); err != nil {
		return t, err
	}
	if err := expect(next, "loop"); err != nil {
		return t, err
	}
	for v := 0; v < 3; v++ {
		if err := expect(next, "vertex"); err != nil {
			return t, err
		}
		p, err := readCoords(next)
		if err != nil {
			return t, err
		}
		t.V[v] = p
	}
	if err := expect(next, "endloop"); err != nil {
		return t, err
	}
	if err := expect(next, "endfacet"); err != nil {
		return t, err
	}
	return t, nil
}

func expect(next func() (string, bool), want string) error {
	tok, ok := next()
	if !ok {
		return fmt.Errorf("%w: ASCII STL truncated, expected %q", ErrMalformed, want)
	}
	if tok != want {
		return fmt.Errorf("%w: expected %q, found %q", ErrMalformed, want, tok)
	}
	return nil
}

func readCoords(next func() (string, bool)) (models.Vec3, error) {
	var c [3]float64
	for i := range c {
		tok, ok := next()
		if !ok {
			return models.Vec3{}, fmt.Errorf("%w: ASCII STL truncated inside a coordinate triple", ErrMalformed)
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return models.Vec3{}, fmt.Errorf("%w: bad coordinate %q", ErrMalformed, tok)
		}
		c[i] = f
	}
	return models.Vec3{X: c[0], Y: c[1], Z: c[2]}, nil
}
