// Package daemonrun is the process entry point behind "panelcast daemon": it
// sets up signal handling, the timestamped log file, the pid file, and the
// journal, then runs the daemon until it is told to stop.
package daemonrun
