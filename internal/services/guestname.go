package services

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/tyler-smith/go-bip39/wordlists"
)

// wordlist is the BIP39 English wordlist (2048 words).
var wordlist = wordlists.English

// GuestNameService generates random human-readable attendee nicknames,
// offered as a suggested display name when joining a room.
type GuestNameService struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGuestNameService creates a GuestNameService with its own random source.
func NewGuestNameService() *GuestNameService {
	return &GuestNameService{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate creates a random PascalCase name like "HappyTiger42".
// No uniqueness is attempted; collisions between attendees are harmless
// because voting identity is the session token, not the display name.
func (s *GuestNameService) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	word1 := wordlist[s.rng.Intn(len(wordlist))]
	word2 := wordlist[s.rng.Intn(len(wordlist))]
	num := s.rng.Intn(100)
	return fmt.Sprintf("%s%s%d", capitalize(word1), capitalize(word2), num)
}

// capitalize returns the string with its first letter uppercased.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
