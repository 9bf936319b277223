// Package drapto wraps the Drapto Go library so the re-encode step can run an
// in-process AV1 transcode instead of shelling out to ffmpeg.
//
// Encoder hides Drapto's directory-based output convention behind a
// file-to-file Encode call and reduces its reporter callbacks to Progress
// values.
package drapto
