package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lorekit/lore/internal/rag"
)

// chatClient talks to a running lore server's streaming endpoint.
type chatClient struct {
	baseURL string
	http    *http.Client
}

func newChatClient(baseURL string, timeout time.Duration) *chatClient {
	return &chatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// sourcesFrame mirrors the `8:` data frame payload.
type sourcesFrame []struct {
	Type string `json:"type"`
	Data struct {
		Nodes []rag.SourceNode `json:"nodes"`
	} `json:"data"`
}

// stream sends messages to POST /api/chat and decodes the response
// frames, invoking onToken for every text fragment. It returns the full
// answer and the source nodes from the trailing data frame.
func (c *chatClient) stream(ctx context.Context, messages []rag.Message, onToken func(string)) (string, []rag.SourceNode, error) {
	body, err := json.Marshal(map[string]any{"messages": messages})
	if err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("connecting to %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", nil, fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var (
		answer strings.Builder
		nodes  []rag.SourceNode
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		token, frameNodes, err := decodeFrame(scanner.Text())
		if err != nil {
			return "", nil, err
		}
		if frameNodes != nil {
			nodes = frameNodes
			continue
		}
		if token != "" {
			answer.WriteString(token)
			if onToken != nil {
				onToken(token)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("reading stream: %w", err)
	}

	return answer.String(), nodes, nil
}

// decodeFrame parses one data-stream line. Text frames return a token,
// data frames return the source nodes; unknown prefixes are skipped.
func decodeFrame(line string) (string, []rag.SourceNode, error) {
	switch {
	case strings.HasPrefix(line, "0:"):
		var token string
		if err := json.Unmarshal([]byte(line[2:]), &token); err != nil {
			return "", nil, fmt.Errorf("malformed text frame %q: %w", line, err)
		}
		return token, nil, nil
	case strings.HasPrefix(line, "8:"):
		var frame sourcesFrame
		if err := json.Unmarshal([]byte(line[2:]), &frame); err != nil {
			return "", nil, fmt.Errorf("malformed data frame %q: %w", line, err)
		}
		for _, event := range frame {
			if event.Type == "sources" {
				return "", event.Data.Nodes, nil
			}
		}
		return "", nil, nil
	default:
		return "", nil, nil
	}
}
