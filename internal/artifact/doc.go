// Package artifact locates an installable raven binary.
//
// Resolution walks a fixed ladder: a binary already present in the source
// checkout wins, then a fresh build of the checkout, then the published
// release download. Build problems never abort the run; they are logged and
// resolution falls through to the next rung. Only downloaded binaries are
// verified against a digest, taken from the settings or from the release
// manifest published beside the binary.
package artifact
