// Package redis provides MessageFromRedis, a routine that reads messages
// published by output/redis from a Redis stream.
package redis
