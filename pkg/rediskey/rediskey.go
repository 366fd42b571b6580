package rediskey

import "fmt"

// Key prefixes shared by every process talking to the same redis.
const (
	RateLimitPrefix = "ratelimit"
	SequencePrefix  = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildRateLimitKey returns "ratelimit:{scope}:{subject}:{window}".
func BuildRateLimitKey(scope, subject string, window int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", RateLimitPrefix, scope, subject, window)
}

// BuildSequenceKey returns "seq:{parts...}".
func BuildSequenceKey(parts ...string) string {
	key := SequencePrefix
	for _, p := range parts {
		key = NamespaceKey(key, p)
	}
	return key
}
