package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key 由前缀与各部分的 JSON 编码哈希组成，格式为 prefix:sha256。
func Key(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// Hash returns the full SHA-256 hex digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
