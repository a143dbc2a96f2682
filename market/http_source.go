package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSource fetches quotes from a REST endpoint:
//
//	GET {baseURL}/v1/quotes/{ticker}
//	Authorization: Bearer {token}
//
// answering {"ticker":"AAPL","price":"187.44","time":"2024-03-15T20:00:00Z"}.
// Price may be a JSON string or number. A 404 is a data gap.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPSource creates a client for baseURL. An empty token sends no
// Authorization header.
func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// quoteResponse is the API's quote payload.
type quoteResponse struct {
	Ticker string      `json:"ticker"`
	Price  json.Number `json:"price"`
	Time   string      `json:"time"`
}

func (c *HTTPSource) Price(ctx context.Context, ticker string) (Quote, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return Quote{}, fmt.Errorf("ticker is required")
	}

	apiURL := fmt.Sprintf("%s/v1/quotes/%s", c.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Quote{}, fmt.Errorf("%s: %w", ticker, ErrUnavailable)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var qr quoteResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&qr); err != nil {
		return Quote{}, fmt.Errorf("decode response: %w", err)
	}

	px, err := qr.Price.Float64()
	if err != nil {
		return Quote{}, fmt.Errorf("%s: bad price %q: %w", ticker, qr.Price, err)
	}
	if err := ValidatePrice(px); err != nil {
		return Quote{}, fmt.Errorf("%s: %w", ticker, err)
	}

	q := Quote{Ticker: ticker, Price: px, Time: time.Now().UTC()}
	if qr.Time != "" {
		t, err := ParseTime(qr.Time)
		if err != nil {
			return Quote{}, fmt.Errorf("%s: %w", ticker, err)
		}
		q.Time = t
	}
	return q, nil
}
