package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamKey returns the cache key for a full exam document
func (r *CacheKeyStruct) ExamKey(examID string) string {
	return fmt.Sprintf("exam:%s:doc", examID)
}

// ExamCodeKey returns the cache key mapping an exam code to its exam id
func (r *CacheKeyStruct) ExamCodeKey(examCode string) string {
	return fmt.Sprintf("exam_code:%s", examCode)
}

// ResultLinkNonceKey returns the key marking a result-link nonce as used
func (r *CacheKeyStruct) ResultLinkNonceKey(nonce string) string {
	return fmt.Sprintf("result_link:nonce:%s", nonce)
}

var CacheKey = NewCacheKeyStruct()
