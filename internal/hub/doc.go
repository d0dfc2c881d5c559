// Package hub owns the per-process connection state: the registry mapping a
// user to their live local connection and the per-connection write pump.
// Nothing here is visible to other processes; a lookup miss only means the
// user is not connected to this process.
package hub
