// internal/gateway/reachability.go
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	commonhttp "dialogmote-coordinator/internal/common/http"
	"dialogmote-coordinator/internal/common/logger"
)

// reachabilityTTL bounds how long a cached verdict is trusted. People
// register and deregister digital mailboxes; an hour of staleness is
// acceptable, wrong channel choice for a day is not.
const reachabilityTTL = time.Hour

// ReachabilityClient resolves whether a person can receive digital mail,
// caching verdicts in Redis. It implements dispatch.ReachabilityChecker.
type ReachabilityClient struct {
	http    *commonhttp.Client
	baseURL string
	cache   *redis.Client
	log     logger.Logger
}

func NewReachabilityClient(baseURL string, timeout time.Duration, cache *redis.Client, log logger.Logger) *ReachabilityClient {
	return &ReachabilityClient{
		http:    commonhttp.NewClient(timeout),
		baseURL: baseURL,
		cache:   cache,
		log:     log.WithFields(map[string]interface{}{"component": "reachability"}),
	}
}

func cacheKey(personID string) string {
	return "reachability:" + personID
}

type reachabilityResponse struct {
	DigitallyReachable bool `json:"digitallyReachable"`
}

// IsDigitallyReachable answers from cache when possible, otherwise asks the
// upstream register and caches the verdict. Cache errors degrade to an
// upstream call, never to a failed check.
func (c *ReachabilityClient) IsDigitallyReachable(ctx context.Context, personID string) (bool, error) {
	if c.cache != nil {
		val, err := c.cache.Get(ctx, cacheKey(personID)).Result()
		if err == nil {
			return val == "1", nil
		}
		if err != redis.Nil {
			c.log.Warn("reachability cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	reachable, err := c.lookup(ctx, personID)
	if err != nil {
		return false, err
	}

	if c.cache != nil {
		cached := "0"
		if reachable {
			cached = "1"
		}
		if err := c.cache.Set(ctx, cacheKey(personID), cached, reachabilityTTL).Err(); err != nil {
			c.log.Warn("reachability cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return reachable, nil
}

func (c *ReachabilityClient) lookup(ctx context.Context, personID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/reachability", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Person-Id", personID)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, domainerrors.NewUpstreamUnavailableError("reachability", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, domainerrors.NewUpstreamUnavailableError("reachability",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out reachabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, domainerrors.NewUpstreamUnavailableError("reachability", err)
	}
	return out.DigitallyReachable, nil
}
