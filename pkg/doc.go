// Package pkg provides the core libraries for the diagramforge compiler.
//
// # Overview
//
// Diagramforge compiles an SVG-superset diagram language into plain
// SVG. Documents are ordinary SVG trees extended with a small set of
// namespaced elements and attributes for templates, includes, flex
// containers, layered graphs, and anchored connectors. The pkg
// directory is organized along the pipeline:
//
//  1. [dsl] - namespace-aware parsing and element tree manipulation
//  2. [compile] - pipeline orchestration: templates, includes, layout,
//     connectors, viewport, serialization
//  3. [layout] - flex containers, graph expansion, geometry measurement
//  4. [dag] - cycle breaking, ranking, and ordering for graph layout
//  5. [svg] - deterministic SVG text emission
//  6. [geom], [metrics] - primitives shared by the layout stages
//  7. [errors] - stable error codes surfaced to users and the HTTP API
//  8. [config], [cache], [store] - project configuration, compile
//     caching, and document persistence for the serve wrapper
//
// # Data Flow
//
// The typical flow through a compile:
//
//	diagram markup
//	         ↓ dsl.ParseString
//	template + include expansion (compile)
//	         ↓
//	graph + flex layout (layout, dag)
//	         ↓
//	anchors, arrows, viewport (compile)
//	         ↓ svg.Marshal
//	plain SVG text
//
// Every stage is deterministic: the same input document always yields
// byte-identical output.
package pkg
