// Package ffprobe inspects rendered videos so the pipeline can confirm the
// re-encoded artifact is a playable container before reporting success.
package ffprobe
