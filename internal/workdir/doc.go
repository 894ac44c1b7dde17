// Package workdir stages AsciiDoc sources into an intermediate working
// directory so conversion-time side effects (diagram caches, generated
// images) never mutate the original source tree.
//
// The staging directory is fixed per configuration, cleared and recreated at
// the start of every invocation, and becomes the effective source root for
// all subsequent job construction. A clear or create failure is fatal before
// any conversion is attempted.
package workdir
