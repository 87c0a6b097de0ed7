package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// CatalogTrack is one candidate from a catalog search: the descriptive fields
// an attendee's request copies onto the queue item.
type CatalogTrack struct {
	ID           string
	Title        string
	Artists      []string
	ThumbnailURL string
	ExternalURL  string
}

// CatalogService searches the Spotify catalog using the client-credentials
// flow. The access token is cached and refreshed shortly before expiry.
// Transport and upstream failures surface as ErrUpstreamUnavailable.
type CatalogService struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

type catalogTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type catalogSearchResponse struct {
	Tracks struct {
		Items []catalogItem `json:"items"`
	} `json:"tracks"`
}

type catalogItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Album  struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// NewCatalogService creates a CatalogService with bounded request timeouts.
func NewCatalogService(clientID, clientSecret string) *CatalogService {
	return &CatalogService{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *CatalogService) getAccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		token := s.token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, "POST", "https://accounts.spotify.com/api/token", strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request failed with status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var tokenResp catalogTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode token response: %v", ErrUpstreamUnavailable, err)
	}

	s.token = tokenResp.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return s.token, nil
}

// Search returns up to limit candidate tracks for a free-text query, in the
// catalog's relevance order.
func (s *CatalogService) Search(ctx context.Context, query string, limit int) ([]CatalogTrack, error) {
	token, err := s.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 50 {
		limit = 20
	}

	searchURL := fmt.Sprintf("https://api.spotify.com/v1/search?q=%s&type=track&limit=%d",
		url.QueryEscape(query), limit)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search request failed: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: search failed with status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var searchResp catalogSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode search response: %v", ErrUpstreamUnavailable, err)
	}

	tracks := make([]CatalogTrack, len(searchResp.Tracks.Items))
	for i, item := range searchResp.Tracks.Items {
		artists := make([]string, len(item.Artists))
		for j, a := range item.Artists {
			artists[j] = a.Name
		}

		var thumbnail string
		if len(item.Album.Images) > 0 {
			thumbnail = item.Album.Images[len(item.Album.Images)-1].URL
		}

		externalURL := item.ExternalURLs.Spotify
		if externalURL == "" {
			externalURL = "https://open.spotify.com/track/" + item.ID
		}

		tracks[i] = CatalogTrack{
			ID:           item.ID,
			Title:        item.Name,
			Artists:      artists,
			ThumbnailURL: thumbnail,
			ExternalURL:  externalURL,
		}
	}

	return tracks, nil
}
