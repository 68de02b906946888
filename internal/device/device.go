// Package device generates synthetic device identities for login QR
// requests. A fresh identity is produced for every QR request so the
// login never reuses a stale device record.
package device

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand"
)

const asciiLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var firstNames = []string{
	"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael",
	"Linda", "William", "Elizabeth", "David", "Barbara", "Richard", "Susan",
	"Joseph", "Jessica", "Thomas", "Sarah", "Charles", "Karen",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
	"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
}

// NewID returns a fresh device identifier: the fixed prefix "49" followed
// by an md5 hex digest of random letters with its first two characters
// dropped, yielding a 32-character string.
func NewID() string {
	letters := make([]byte, 15)
	for i := range letters {
		letters[i] = asciiLetters[rand.Intn(len(asciiLetters))]
	}
	sum := md5.Sum(letters)
	return "49" + hex.EncodeToString(sum[:])[2:]
}

// NewName returns a plausible device name of the form
// "<First> <Last>'s iPad".
func NewName() string {
	first := firstNames[rand.Intn(len(firstNames))]
	last := lastNames[rand.Intn(len(lastNames))]
	return first + " " + last + "'s iPad"
}
