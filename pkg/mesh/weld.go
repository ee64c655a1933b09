package mesh

import "github.com/mcortz/meshlens/internal/models"

// Weld deduplicates coincident vertices across all triangles and builds the
// indexed mesh. Indices are assigned in first-seen order, iterating triangles
// in input order and each triangle's vertices in their original order, so the
// result is deterministic for byte-identical input. Equality is exact: the
// map keys on the parsed coordinate values with no tolerance.
func Weld(tris []models.Triangle) *models.IndexedMesh {
	m := &models.IndexedMesh{}
	seen := make(map[models.Vec3]int)

	for _, t := range tris {
		var face [3]int
		for i, v := range t.V {
			idx, ok := seen[v]
			if !ok {
				idx = len(m.Verts)
				m.Verts = append(m.Verts, v)
				seen[v] = idx
			}
			face[i] = idx
		}
		m.Faces = append(m.Faces, face)
	}
	return m
}
