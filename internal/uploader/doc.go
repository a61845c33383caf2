// Package uploader coordinates resumable chunked uploads into object
// storage. Each destination object has at most one in-flight upload per
// coordinator; interrupted uploads resume from the committed offset when the
// source file is unchanged.
package uploader
