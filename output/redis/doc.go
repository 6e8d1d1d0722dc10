// Package redis provides MessageToRedis, a routine that publishes encoded
// messages to a Redis stream with XADD MAXLEN. input/redis reads them back.
package redis
