package model

import "strings"

// CheckOwnerKey rejects keys that could escape the towns directory
func CheckOwnerKey(key string) error {
	if key == "" || key == "." || strings.Contains(key, "..") || strings.ContainsAny(key, "/\\\x00") {
		return ErrInvalidOwnerKey
	}
	return nil
}
