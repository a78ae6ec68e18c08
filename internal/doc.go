// Package internal contains the core implementation packages for gridinline.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - pattern: Template reference kinds and the combined reference regexp
//   - driver: Generic match/resolve/patch pipeline over one source text
//   - minify: HTML minification on top of the x/net/html tokenizer
//   - inline: Template loading, escaping and reference resolution
//   - build: Source discovery, worker pool, template cache and run metrics
//   - config: Configuration loading and validation with viper
//   - errors: Structured inlining errors and per-file failure collection
//   - logging: Structured logging on log/slog
//   - watcher: File system monitoring with debouncing
//   - version: Build information
//
// # Data Flow
//
// A run flows through the packages in one direction:
//
//   - build discovers sources and hands each to a worker
//   - inline finds references with pattern and drives them through driver
//   - each reference is loaded, minified by minify and escaped into a patch
//   - driver splices the patches front to back in offset order and build
//     writes the result
//
// Template read and minification failures are recoverable. With
// skip_errors they become a warning and the reference stays as written;
// otherwise the whole source fails and is left untouched.
package internal
