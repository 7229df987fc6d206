package redis

import "fmt"

type keys struct {
	prefix string
}

// user returns the key holding a user record as JSON
func (k keys) user(email string) string {
	return fmt.Sprintf("%s:user:%s", k.prefix, email)
}

// mayhemIndex maps a mayhem id to an email
func (k keys) mayhemIndex(mayhemID string) string {
	return fmt.Sprintf("%s:idx:mayhem:%s", k.prefix, mayhemID)
}

// tokenIndex maps an access token to an email
func (k keys) tokenIndex(token string) string {
	return fmt.Sprintf("%s:idx:token:%s", k.prefix, token)
}
