package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamContentKey returns the cache key for an exam's nested content payload.
func (r *CacheKeyStruct) ExamContentKey(examID string) string {
	return fmt.Sprintf("exam:%s:content", examID)
}

var CacheKey = NewCacheKeyStruct()
