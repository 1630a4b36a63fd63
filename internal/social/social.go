// Package social is a plain CRUD client for the agent feed service:
// rooms, posts, comments, votes, and head-to-head challenges. No
// scheduling logic lives here; the brain decides, this package just calls.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"personad/pkg/retrylimit"
)

// Post is one feed entry.
type Post struct {
	ID        int       `json:"id"`
	AgentID   int       `json:"agent_id"`
	RoomID    int       `json:"room_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Upvotes   int       `json:"upvotes"`
	CreatedAt time.Time `json:"created_at"`
}

// Challenge phases: "open" (awaiting opponent), "active" (entries being
// written), "voting" (entries in, votes being cast).
type Challenge struct {
	ID              int    `json:"id"`
	Topic           string `json:"topic"`
	Stake           int    `json:"stake"`
	Status          string `json:"status"`
	ChallengerID    int    `json:"challenger_id"`
	DefenderID      int    `json:"defender_id"`
	ChallengerEntry string `json:"challenger_entry"`
	DefenderEntry   string `json:"defender_entry"`
}

// Agent is the feed-side identity of a registered persona.
type Agent struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// Room is a themed posting area.
type Room struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	lim     *retrylimit.AdaptiveLimiter
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		lim:     retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	return retrylimit.Do(ctx, c.lim, retrylimit.DefaultConfig(), func() error {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return &retrylimit.Permanent{Err: err}
			}
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return &retrylimit.Permanent{Err: err}
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusConflict {
			// duplicate vote or similar; callers treat this as done
			return &retrylimit.Permanent{Err: ErrConflict}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return &retrylimit.Permanent{Err: fmt.Errorf("feed http %d: %s", resp.StatusCode, raw)}
			}
			return &retrylimit.StatusError{Code: resp.StatusCode, Msg: string(raw)}
		}
		if result == nil {
			return nil
		}
		return json.Unmarshal(raw, result)
	})
}

// ErrConflict marks an already-performed action (e.g. double vote).
var ErrConflict = fmt.Errorf("feed: already done")

// AgentByName looks up a registered agent, nil if absent.
func (c *Client) AgentByName(ctx context.Context, name string) (*Agent, error) {
	var agents []Agent
	if err := c.do(ctx, http.MethodGet, "/api/agents?name="+name, nil, &agents); err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, nil
	}
	return &agents[0], nil
}

// RegisterAgent creates the persona's feed identity.
func (c *Client) RegisterAgent(ctx context.Context, name, bio string) (*Agent, error) {
	var agent Agent
	payload := map[string]string{"name": name, "bio": bio}
	if err := c.do(ctx, http.MethodPost, "/api/agents", payload, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// Rooms lists all posting rooms.
func (c *Client) Rooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// RecentPosts returns the newest posts across all rooms.
func (c *Client) RecentPosts(ctx context.Context, limit int) ([]Post, error) {
	var posts []Post
	path := fmt.Sprintf("/api/posts?sort=new&limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// AgentRecentPosts returns one agent's newest posts.
func (c *Client) AgentRecentPosts(ctx context.Context, agentID, limit int) ([]Post, error) {
	var posts []Post
	path := fmt.Sprintf("/api/agents/%d/posts?limit=%d", agentID, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) CreatePost(ctx context.Context, agentID, roomID int, title, content string) (*Post, error) {
	var post Post
	payload := map[string]any{"agent_id": agentID, "room_id": roomID, "title": title, "content": content}
	if err := c.do(ctx, http.MethodPost, "/api/posts", payload, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, agentID int, content string) error {
	payload := map[string]any{"agent_id": agentID, "content": content}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), payload, nil)
}

// VotePost casts a vote; direction is +1 or -1.
func (c *Client) VotePost(ctx context.Context, postID, agentID, direction int) error {
	payload := map[string]any{"agent_id": agentID, "direction": direction}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/votes", postID), payload, nil)
}

// Challenges lists challenges in one phase.
func (c *Client) Challenges(ctx context.Context, status string) ([]Challenge, error) {
	var list []Challenge
	if err := c.do(ctx, http.MethodGet, "/api/challenges?status="+status, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateChallenge(ctx context.Context, agentID int, topic string, stake int) (*Challenge, error) {
	var ch Challenge
	payload := map[string]any{"challenger_id": agentID, "topic": topic, "stake": stake}
	if err := c.do(ctx, http.MethodPost, "/api/challenges", payload, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) AcceptChallenge(ctx context.Context, challengeID, agentID int) error {
	payload := map[string]any{"defender_id": agentID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/challenges/%d/accept", challengeID), payload, nil)
}

func (c *Client) SubmitEntry(ctx context.Context, challengeID, agentID int, entry string) error {
	payload := map[string]any{"agent_id": agentID, "entry": entry}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/challenges/%d/entries", challengeID), payload, nil)
}

// VoteChallenge votes for "challenger" or "defender".
func (c *Client) VoteChallenge(ctx context.Context, challengeID, agentID int, side string) error {
	payload := map[string]any{"agent_id": agentID, "side": side}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/challenges/%d/votes", challengeID), payload, nil)
}
