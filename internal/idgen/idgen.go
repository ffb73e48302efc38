// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Entity prefixes. Every durable record ID starts with one of these.
const (
	NodePrefix        = "nd-"
	CommunityPrefix   = "cm-"
	TaskPrefix        = "tk-"
	JobPrefix         = "cj-"
	ComputeNodePrefix = "cn-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// InviteAlphabet is the character set for community invite codes. Uppercase
// only, with look-alike characters (I, L, O, 0, 1) removed so codes survive
// being read aloud or copied by hand.
var InviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// TokenLength is the number of characters in a node auth token.
var TokenLength = 32

// InviteLength is the number of characters in a community invite code.
var InviteLength = 8

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Token returns a new node auth token.
func Token() (string, error) {
	tok, err := nanoid.Generate(Alphabet, TokenLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return tok, nil
}

// InviteCode returns a new community invite code.
func InviteCode() (string, error) {
	code, err := nanoid.Generate(InviteAlphabet, InviteLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return code, nil
}
