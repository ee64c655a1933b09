package models

// Vec3 is a single position in 3D space. It is comparable, so it doubles as
// the welding key: two positions are the same vertex only when all three
// components are exactly equal. No epsilon merging.
type Vec3 struct {
	X, Y, Z float64
}

// Triangle is one facet of a triangulated surface as it appears in the
// source file: a declared normal plus three vertices in winding order.
// Triangles only live between decode and weld.
type Triangle struct {
	Normal Vec3
	V      [3]Vec3
}

// IndexedMesh is the canonical welded representation: unique vertices in
// first-seen order and triangular faces referencing them by index.
type IndexedMesh struct {
	Verts []Vec3
	Faces [][3]int
}
