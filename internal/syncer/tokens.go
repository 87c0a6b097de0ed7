package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenStore holds this device's anonymous session tokens, one per room
// code, persisted as a JSON file. A token is minted on first use for a room
// and reused for that room's lifetime, which is what makes the server's
// one-vote-per-token rule stick across page reloads and retries. Identity is
// deliberately weak: clearing the file yields a fresh voter.
type TokenStore struct {
	path string

	mu     sync.Mutex
	tokens map[string]string
}

// OpenTokenStore loads the token file at path, creating an empty store if it
// does not exist yet.
func OpenTokenStore(path string) (*TokenStore, error) {
	ts := &TokenStore{
		path:   path,
		tokens: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}
	if err := json.Unmarshal(data, &ts.tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token store: %w", err)
	}
	return ts, nil
}

// Token returns the session token for a room, minting and persisting one on
// first use.
func (t *TokenStore) Token(roomCode string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if token, ok := t.tokens[roomCode]; ok {
		return token, nil
	}

	// Randomness plus time makes cross-device collisions vanishingly rare.
	token := uuid.New().String() + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	t.tokens[roomCode] = token

	if err := t.save(); err != nil {
		delete(t.tokens, roomCode)
		return "", err
	}
	return token, nil
}

// Forget drops the token for a room, e.g. after the room has closed.
func (t *TokenStore) Forget(roomCode string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tokens[roomCode]; !ok {
		return nil
	}
	delete(t.tokens, roomCode)
	return t.save()
}

func (t *TokenStore) save() error {
	data, err := json.MarshalIndent(t.tokens, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token store: %w", err)
	}
	return nil
}
