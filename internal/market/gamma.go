/**
 * @description
 * HTTP MetadataFetcher implementation against the venue's Gamma markets
 * API, queried by CLOB token-id. This is the Resolver's only external
 * collaborator; every other package touches Postgres, Redis, or the chain
 * client instead.
 *
 * @dependencies
 * - net/http
 */

package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/polysleuth/forensics/internal/models"
)

const gammaRequestTimeout = 10 * time.Second

// GammaFetcher implements MetadataFetcher against the Gamma markets API.
type GammaFetcher struct {
	baseURL string
	http    *http.Client
}

// NewGammaFetcher constructs a GammaFetcher pointed at baseURL (e.g.
// "https://gamma-api.polymarket.com").
func NewGammaFetcher(baseURL string) *GammaFetcher {
	return &GammaFetcher{
		baseURL: baseURL,
		http:    &http.Client{Timeout: gammaRequestTimeout},
	}
}

type gammaMarket struct {
	ConditionID  string `json:"conditionId"`
	QuestionID   string `json:"questionID"`
	Slug         string `json:"slug"`
	Question     string `json:"question"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
	ClobTokenIds string `json:"clobTokenIds"`
}

// FetchMarketByToken looks up the condition that owns tokenID via Gamma's
// clob_token_ids filter and derives which side (YES/NO) it is.
func (g *GammaFetcher) FetchMarketByToken(ctx context.Context, tokenID string) (*models.Market, error) {
	u, err := url.Parse(g.baseURL + "/markets")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("clob_token_ids", tokenID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gamma api error: status %d", resp.StatusCode)
	}

	var results []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	gm := results[0]
	yesToken, noToken := parseClobTokenIDs(gm.ClobTokenIds)

	status := models.MarketStatusUnknown
	switch {
	case gm.Closed:
		status = models.MarketStatusClosed
	case gm.Active:
		status = models.MarketStatusActive
	}

	return &models.Market{
		ConditionID: gm.ConditionID,
		QuestionID:  gm.QuestionID,
		YesTokenID:  yesToken,
		NoTokenID:   noToken,
		Slug:        gm.Slug,
		Question:    gm.Question,
		Status:      status,
	}, nil
}

// parseClobTokenIDs parses Gamma's "[\"yes\", \"no\"]" encoded field.
func parseClobTokenIDs(raw string) (yes, no string) {
	if raw == "" {
		return "", ""
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return "", ""
	}
	if len(tokens) >= 2 {
		return tokens[0], tokens[1]
	}
	if len(tokens) == 1 {
		return tokens[0], ""
	}
	return "", ""
}
