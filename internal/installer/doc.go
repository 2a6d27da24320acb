// Package installer hands verified artifacts to whatever installs them.
//
// Trigger is the opaque "install" capability. Router dispatches by content
// type, CommandTrigger launches an external handler and BinaryApplier
// replaces an executable in place. When nothing can handle a request the
// error wraps ErrInstallUnavailable, which callers surface to the user and
// never retry.
package installer
