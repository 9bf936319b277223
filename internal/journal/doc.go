// Package journal stores the current job and its stage outcomes in a small
// SQLite database inside the workspace. It implements pipeline.Recorder and
// is reset whenever a new job is submitted, so it never holds history beyond
// the last run.
package journal
