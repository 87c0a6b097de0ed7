package syncer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openmic/backend/internal/models"
)

const (
	requestTimeout      = 10 * time.Second
	streamMaxRetries    = 3
	streamRetryBaseWait = 2 * time.Second
)

// Client talks to the room API over HTTP. All non-streaming calls are
// bounded by requestTimeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenStore
}

// NewClient creates a Client for a server base URL, e.g. "http://localhost:8080".
// The token store supplies the per-room anonymous voting identity.
func NewClient(baseURL string, tokens *TokenStore) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		tokens:     tokens,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, readError(resp))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetRoom resolves a room by code.
func (c *Client) GetRoom(ctx context.Context, code string) (models.RoomResponse, error) {
	var room models.RoomResponse
	err := c.getJSON(ctx, "/api/rooms/"+code, &room)
	return room, err
}

// ListSongs fetches the room's full song list.
func (c *Client) ListSongs(ctx context.Context, code string) ([]models.SongResponse, error) {
	var songs []models.SongResponse
	err := c.getJSON(ctx, "/api/rooms/"+code+"/songs", &songs)
	return songs, err
}

// RequestSong submits a track request to the room's queue.
func (c *Client) RequestSong(ctx context.Context, code string, req models.SubmitSongRequest) (models.SongResponse, error) {
	var song models.SongResponse

	body, err := json.Marshal(req)
	if err != nil {
		return song, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/rooms/"+code+"/songs", bytes.NewReader(body))
	if err != nil {
		return song, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return song, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return song, fmt.Errorf("request song: %s", readError(resp))
	}
	return song, json.NewDecoder(resp.Body).Decode(&song)
}

// Vote casts this device's vote for a song. The session token scoped to the
// room makes retries and repeat clicks idempotent on the server.
func (c *Client) Vote(ctx context.Context, code, songID string) (models.SongResponse, error) {
	var song models.SongResponse

	token, err := c.tokens.Token(code)
	if err != nil {
		return song, fmt.Errorf("failed to resolve session token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/songs/"+songID+"/vote", nil)
	if err != nil {
		return song, err
	}
	req.Header.Set("X-Session-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return song, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return song, fmt.Errorf("vote: %s", readError(resp))
	}
	return song, json.NewDecoder(resp.Body).Decode(&song)
}

// Subscribe opens the room's SSE event stream. Transient connection drops
// are retried with exponential backoff; after repeated failures, or on
// room_closed, the event channel closes.
func (c *Client) Subscribe(ctx context.Context, code string) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &sseStream{
		events: make(chan string, 8),
		cancel: cancel,
	}
	go s.run(ctx, c.baseURL+"/api/rooms/"+code+"/events")
	return s
}

// sseStream reads "event:" lines from an SSE response body.
type sseStream struct {
	events chan string
	cancel context.CancelFunc
}

func (s *sseStream) Events() <-chan string { return s.events }

func (s *sseStream) Close() error {
	s.cancel()
	return nil
}

func (s *sseStream) run(ctx context.Context, url string) {
	defer close(s.events)

	// Streaming reads must not be cut off by a request timeout.
	client := &http.Client{}
	retries := 0

	for {
		terminal, err := s.consume(ctx, client, url)
		if terminal || ctx.Err() != nil {
			return
		}

		retries++
		if retries > streamMaxRetries {
			return
		}
		wait := streamRetryBaseWait * time.Duration(1<<(retries-1))
		slog.Debug("event stream dropped, reconnecting",
			slog.Int("attempt", retries),
			slog.Duration("wait", wait),
			slog.Any("error", err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// consume reads one SSE connection to its end. It reports terminal = true
// when the room is gone (room_closed or a non-200 response); false means a
// transient drop worth a reconnect. Any received event resets nothing here:
// the caller's refetch logic tolerates duplicates.
func (s *sseStream) consume(ctx context.Context, client *http.Client, url string) (terminal bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return true, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The room no longer resolves; treat as eviction.
		return true, fmt.Errorf("stream rejected with status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		kind, ok := strings.CutPrefix(line, "event: ")
		if !ok {
			continue // data lines and heartbeat comments
		}

		select {
		case s.events <- kind:
		case <-ctx.Done():
			return true, ctx.Err()
		}

		if kind == EventRoomClosed {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// readError extracts the error message from a failed API response.
func readError(resp *http.Response) string {
	var apiErr models.ErrorResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Sprintf("%s (status %d)", apiErr.Error, resp.StatusCode)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
