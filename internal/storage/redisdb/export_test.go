package redisdb

var (
	SessionKey = sessionKey
	TTL        = ttl
)
