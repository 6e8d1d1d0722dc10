// Package nats provides MessageToNATS, a routine that publishes encoded
// messages on a NATS subject through natsclient. input/nats subscribes to them.
package nats
