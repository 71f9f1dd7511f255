package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"numerai-reports/utils"
)

// DefaultBaseURL is the public tournament GraphQL endpoint.
const DefaultBaseURL = "https://api-tournament.numer.ai"

// ErrRoundNotFound is returned when the API has no such round for the tournament.
var ErrRoundNotFound = errors.New("no such round")

// Client talks to the tournament GraphQL API.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  utils.HTTPClient,
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

const tournamentsQuery = `
query {
  tournaments {
    tournament
    name
    active
  }
}`

const roundsQuery = `
query($tournament: Int!) {
  rounds(tournament: $tournament) {
    number
    status
  }
}`

const leaderboardQuery = `
query($number: Int!, $tournament: Int!) {
  rounds(number: $number, tournament: $tournament) {
    number
    status
    benchmarkType
    selection {
      bCutoff
      pCutoff
    }
    leaderboard {
      username
      liveAuroc
      liveLogloss
      liveCorrelation
      validationAuroc
      validationLogloss
      stake {
        value
        confidence
      }
      stakeResolution {
        destroyed
        successful
      }
      paymentStaking {
        nmrAmount
        usdAmount
      }
      paymentGeneral {
        nmrAmount
        usdAmount
      }
      return {
        nmrAmount
      }
    }
  }
}`

// ListTournaments returns every tournament the API knows about.
func (c *Client) ListTournaments(ctx context.Context) ([]Tournament, error) {
	var out struct {
		Tournaments []Tournament `json:"tournaments"`
	}
	if err := c.query(ctx, tournamentsQuery, nil, &out); err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	return out.Tournaments, nil
}

// ListRoundsByTournament returns the rounds of one tournament.
func (c *Client) ListRoundsByTournament(ctx context.Context, tournament int) ([]RoundInfo, error) {
	var out struct {
		Rounds []RoundInfo `json:"rounds"`
	}
	vars := map[string]interface{}{"tournament": tournament}
	if err := c.query(ctx, roundsQuery, vars, &out); err != nil {
		return nil, fmt.Errorf("list rounds of tournament %d: %w", tournament, err)
	}
	return out.Rounds, nil
}

// FetchRoundLeaderboard returns the leaderboard of one round in one tournament.
func (c *Client) FetchRoundLeaderboard(ctx context.Context, round, tournament int) (*RoundPayload, error) {
	var out struct {
		Rounds []RoundPayload `json:"rounds"`
	}
	vars := map[string]interface{}{"number": round, "tournament": tournament}
	if err := c.query(ctx, leaderboardQuery, vars, &out); err != nil {
		return nil, fmt.Errorf("fetch round %d tournament %d: %w", round, tournament, err)
	}
	if len(out.Rounds) == 0 {
		return nil, fmt.Errorf("fetch round %d tournament %d: %w", round, tournament, ErrRoundNotFound)
	}
	payload := out.Rounds[0]
	return &payload, nil
}

func (c *Client) query(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", c.BaseURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		log.Printf("[API] ❌ Request to %s failed: %v", c.BaseURL, err)
		return fmt.Errorf("HTTP request to tournament API failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[API] ❌ Tournament API returned %d: %s", resp.StatusCode, string(msg))
		return fmt.Errorf("tournament API non-200 response: %d: %s", resp.StatusCode, string(msg))
	}

	var gr graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return fmt.Errorf("failed to decode tournament API response: %w", err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		joined := strings.Join(msgs, "; ")
		if strings.Contains(strings.ToLower(joined), "no such round") ||
			strings.Contains(strings.ToLower(joined), "round not found") {
			return fmt.Errorf("%s: %w", joined, ErrRoundNotFound)
		}
		return fmt.Errorf("tournament API error: %s", joined)
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return fmt.Errorf("tournament API returned no data")
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("failed to decode tournament API data: %w", err)
	}
	return nil
}
