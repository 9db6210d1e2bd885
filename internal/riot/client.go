package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"rift-rewind/internal/config"
	"rift-rewind/internal/constants"
	"rift-rewind/internal/regions"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

var (
	// ErrNotFound is a terminal upstream 404 (bad handle or match id).
	ErrNotFound = errors.New("riot: not found")
	// ErrRateLimited surfaces after the in-call retry budget is spent on
	// 429s; the job should be nacked and redelivered, never failed.
	ErrRateLimited = errors.New("riot: rate limited")
	// ErrUpstream covers 5xx and malformed bodies. An empty body is an
	// upstream error, never "no data".
	ErrUpstream = errors.New("riot: upstream error")
)

type Client struct {
	apiKey string
	client *fasthttp.Client
	logger zerolog.Logger
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		apiKey: cfg.RiotAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

// ResolveAccount resolves a Riot ID (name + tag) to its puuid on the
// given routing cluster.
func (c *Client) ResolveAccount(ctx context.Context, cluster regions.Cluster, name, tag string) (*Account, error) {
	u := fmt.Sprintf("https://%s.api.riotgames.com/riot/account/v1/accounts/by-riot-id/%s/%s",
		cluster, url.PathEscape(name), url.PathEscape(tag))

	account, err := doRequest[Account](ctx, c, u)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("cluster", string(cluster)).
			Str("name", name).
			Str("tag", tag).
			Msg("account resolution failed")
		return nil, err
	}
	if account.PUUID == "" {
		return nil, fmt.Errorf("%w: account response missing puuid", ErrUpstream)
	}

	c.logger.Info().
		Str("cluster", string(cluster)).
		Str("puuid", account.PUUID).
		Msg("account resolved")
	return account, nil
}

// ListMatchIDs returns one page of ranked match ids for a player,
// newest first.
func (c *Client) ListMatchIDs(ctx context.Context, cluster regions.Cluster, puuid string, start, count int) ([]string, error) {
	u := fmt.Sprintf("https://%s.api.riotgames.com/lol/match/v5/matches/by-puuid/%s/ids?type=ranked&start=%d&count=%d",
		cluster, url.PathEscape(puuid), start, count)

	ids, err := doRequest[[]string](ctx, c, u)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("cluster", string(cluster)).
			Str("puuid", puuid).
			Msg("match list failed")
		return nil, err
	}

	c.logger.Info().
		Str("cluster", string(cluster)).
		Str("puuid", puuid).
		Int("count", len(*ids)).
		Msg("match ids listed")
	return *ids, nil
}

// GetMatch fetches the full Match-v5 payload for one match.
func (c *Client) GetMatch(ctx context.Context, cluster regions.Cluster, matchID string) (*Match, error) {
	u := fmt.Sprintf("https://%s.api.riotgames.com/lol/match/v5/matches/%s",
		cluster, url.PathEscape(matchID))

	match, err := doRequest[Match](ctx, c, u)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("cluster", string(cluster)).
			Str("match_id", matchID).
			Msg("match fetch failed")
		return nil, err
	}
	if match.Metadata.MatchID == "" || len(match.Info.Participants) == 0 {
		return nil, fmt.Errorf("%w: match %s response missing participants", ErrUpstream, matchID)
	}

	c.logger.Debug().
		Str("cluster", string(cluster)).
		Str("match_id", matchID).
		Msg("match fetched")
	return match, nil
}

func doRequest[T any](ctx context.Context, c *Client, u string) (*T, error) {
	var result T

	backoff := retry.WithMaxRetries(constants.RiotMaxRetries, retry.NewExponential(constants.RiotRetryBaseDur))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		status, body, err := c.get(ctx, u)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrUpstream, err))
		}

		switch {
		case status == fasthttp.StatusNotFound:
			return ErrNotFound
		case status == fasthttp.StatusTooManyRequests:
			c.logger.Warn().Int("status", status).Str("url", u).Msg("rate limited, backing off")
			return retry.RetryableError(ErrRateLimited)
		case status >= 500:
			return retry.RetryableError(fmt.Errorf("%w: status %d", ErrUpstream, status))
		case status != fasthttp.StatusOK:
			return fmt.Errorf("%w: status %d", ErrUpstream, status)
		}

		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, u string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(u)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Riot-Token", c.apiKey)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return 0, nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return 0, nil, err
		}
	}

	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}
