// Package httpclient implements the Prediction Consumer port over HTTP,
// wrapped in a circuit breaker so a flaky or slow prediction service
// yields an empty or default answer instead of blocking or returning an
// error.
// Circuit-breaker shape grounded on
// LuoZihYuan-gospital/internal/infrastructure/mysql_client.go; request/
// response idiom grounded on the teacher's
// internal/client/notification_client.go plain net/http client.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/queueme/scheduling-core/pkg/logger"
)

// Client is an HTTP-backed prediction.Consumer.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     *logger.Logger
}

func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "prediction-service",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
		log:     log,
	}
}

type demandRequest struct {
	ShopID string      `json:"shop_id"`
	Dates  []time.Time `json:"dates"`
}

type demandResponse struct {
	Demand map[string]int `json:"demand"` // date (2006-01-02) -> predicted count
}

// PredictDailyDemand consults the prediction service; any failure (network,
// non-2xx, breaker open) degrades to an empty map rather than an error, so
// callers treat it as "no signal" per the port's contract.
func (c *Client) PredictDailyDemand(ctx context.Context, shopID string, dates []time.Time) (map[time.Time]int, error) {
	body, err := json.Marshal(demandRequest{ShopID: shopID, Dates: dates})
	if err != nil {
		return map[time.Time]int{}, nil
	}

	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.post(ctx, "/v1/predict/daily-demand", body)
	})
	if err != nil {
		c.warn("predict daily demand", err)
		return map[time.Time]int{}, nil
	}

	var resp demandResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.warn("decode daily demand response", err)
		return map[time.Time]int{}, nil
	}

	out := make(map[time.Time]int, len(resp.Demand))
	for dateStr, count := range resp.Demand {
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		out[d] = count
	}
	return out, nil
}

type allocationResponse struct {
	Ratio float64 `json:"ratio"`
}

// defaultAllocationRatio mirrors prediction.DefaultAllocationRatio without
// importing the parent package back, keeping the fallback local to the
// adapter that actually needs a concrete number when the call fails.
const defaultAllocationRatio = 0.2

// SpecialistAllocationRatio consults the prediction service; any failure
// degrades to the documented default rather than an error.
func (c *Client) SpecialistAllocationRatio(ctx context.Context, specialistID, shopID string) (float64, error) {
	path := fmt.Sprintf("/v1/predict/allocation-ratio?specialist_id=%s&shop_id=%s", specialistID, shopID)

	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.get(ctx, path)
	})
	if err != nil {
		c.warn("specialist allocation ratio", err)
		return defaultAllocationRatio, nil
	}

	var resp allocationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.warn("decode allocation ratio response", err)
		return defaultAllocationRatio, nil
	}
	return resp.Ratio, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("prediction service read body: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Client) warn(op string, err error) {
	if c.log != nil {
		c.log.Warn("prediction service degraded", "operation", op, "error", err)
	}
}
