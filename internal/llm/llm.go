// Package llm implements the external chat side-channel: a streaming
// OpenAI-compatible client whose events are drained through a queue rather
// than touched directly by the server loop's owning thread.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

// connectTimeout bounds dialing and TLS handshake; totalTimeout bounds the
// entire request including the streamed body.
const (
	connectTimeout = 30 * time.Second
	totalTimeout   = 300 * time.Second
)

// ChunkKind distinguishes a streamed content delta from a terminal event.
type ChunkKind int

const (
	ChunkContent ChunkKind = iota
	ChunkDone
	ChunkError
)

// Chunk is one AI event, queued for the server loop to broadcast as
// aiChunk / aiDone / aiError.
type Chunk struct {
	SessionID uint64
	Kind      ChunkKind
	Content   string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Messages []message `json:"messages"`
}

// Provider is one configured chat backend (an llm_providers row).
type Provider struct {
	Name   string
	Type   string
	URL    string
	Model  string
	APIKey string
}

// Client pushes the chunks of its streaming requests onto a single shared
// queue as they arrive, so the server loop can broadcast them without
// touching the HTTP layer.
type Client struct {
	httpClient *http.Client

	mu     sync.Mutex
	chunks []Chunk
}

// NewClient builds a Client with the connect/total timeouts fixed above.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: totalTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
				TLSHandshakeTimeout: connectTimeout,
			},
		},
	}
}

// Chat starts a streaming chat completion in the background; resulting
// chunks are appended to the client's queue as they arrive, for DrainChunks
// to pick up on the next server tick.
func (c *Client) Chat(sessionID uint64, provider Provider, userMessage string) {
	go c.chat(sessionID, provider, userMessage)
}

func (c *Client) chat(sessionID uint64, provider Provider, userMessage string) {
	ctx, cancel := context.WithTimeout(context.Background(), totalTimeout)
	defer cancel()

	chatURL, err := joinURL(provider.URL, "/chat/completions")
	if err != nil {
		c.push(Chunk{SessionID: sessionID, Kind: ChunkError, Content: err.Error()})
		return
	}

	body, err := json.Marshal(chatRequest{
		Model:  provider.Model,
		Stream: true,
		Messages: []message{
			{Role: "user", Content: userMessage},
		},
	})
	if err != nil {
		c.push(Chunk{SessionID: sessionID, Kind: ChunkError, Content: err.Error()})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL, bytes.NewReader(body))
	if err != nil {
		c.push(Chunk{SessionID: sessionID, Kind: ChunkError, Content: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if provider.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+provider.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.push(Chunk{SessionID: sessionID, Kind: ChunkError, Content: err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.push(Chunk{SessionID: sessionID, Kind: ChunkError, Content: fmt.Sprintf("provider returned %d: %s", resp.StatusCode, respBody)})
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var event struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		if len(event.Choices) > 0 && event.Choices[0].Delta.Content != "" {
			c.push(Chunk{SessionID: sessionID, Kind: ChunkContent, Content: event.Choices[0].Delta.Content})
		}
	}

	if err := scanner.Err(); err != nil {
		c.push(Chunk{SessionID: sessionID, Kind: ChunkError, Content: err.Error()})
		return
	}
	c.push(Chunk{SessionID: sessionID, Kind: ChunkDone})
}

func (c *Client) push(chunk Chunk) {
	c.mu.Lock()
	c.chunks = append(c.chunks, chunk)
	c.mu.Unlock()
}

// DrainChunks returns and clears all chunks accumulated since the last call.
func (c *Client) DrainChunks() []Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) == 0 {
		return nil
	}
	drained := c.chunks
	c.chunks = nil
	return drained
}

func joinURL(base, rel string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	relURL, err := url.Parse(rel)
	if err != nil {
		return "", err
	}
	if relURL.Scheme != "" && relURL.Host != "" {
		return rel, nil
	}
	joined := *baseURL
	joined.Path = path.Join(baseURL.Path, relURL.Path)
	return joined.String(), nil
}
