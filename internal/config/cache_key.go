package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SubmitRateKey returns the Redis counter key for a client's submissions in a window.
func (r *CacheKeyStruct) SubmitRateKey(clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:submit:%s:%d", clientIP, window)
}

var CacheKey = NewCacheKeyStruct()
