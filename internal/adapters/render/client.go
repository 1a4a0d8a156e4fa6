// Package render talks to the external spread compositor and caches its
// output. The compositor is opaque to this service: given a spread layout
// and the drawn cards it returns a finished image.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/randomtoy/oraculum/internal/domain"
)

// Client renders spreads via the compositor's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type renderRequest struct {
	Spread string       `json:"spread"`
	Cards  []renderCard `json:"cards"`
}

type renderCard struct {
	ID          string `json:"id"`
	Position    int    `json:"position"`
	Orientation string `json:"orientation"`
}

func (c *Client) Render(ctx context.Context, spread domain.Spread) ([]byte, error) {
	cards := make([]renderCard, len(spread.Cards))
	for i, dc := range spread.Cards {
		cards[i] = renderCard{ID: dc.ID, Position: dc.Position, Orientation: string(dc.Orientation)}
	}

	body, err := json.Marshal(renderRequest{Spread: string(spread.Type), Cards: cards})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer status %d", resp.StatusCode)
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rendered image: %w", err)
	}
	return img, nil
}
