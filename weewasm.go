// Package weewasm is the root of a toolchain for a restricted dialect of
// WebAssembly: a binary parser, a branch-to-jump rewriter, a producer
// pass that prepares plain modules for rewriting, and a tree-walking
// interpreter, split across internal/ packages and exposed through the
// weerun and weeify commands.
//
// The dialect supports only i32, f64 and externref values, a single
// table and memory, and a fixed triple of host intrinsics
// (weewasm.puti, weewasm.putd, weewasm.puts) bound by import. See
// internal/ir for the data model and internal/parser, internal/rewrite,
// internal/weeify and internal/vm for the pipeline stages.
package weewasm
