// Package nats provides MessageFromNATS, a routine that receives messages
// published by output/nats.
package nats
