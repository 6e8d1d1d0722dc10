// Package relay provides the Relay routine, which forwards messages between
// two queues of a component and can mirror or invert raw frames on the way.
package relay
