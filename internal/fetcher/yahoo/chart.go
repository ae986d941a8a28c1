package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNoData is returned when Yahoo answers with an empty result set.
var ErrNoData = errors.New("yahoo: no data")

// ChartParams selects the window of a chart request. Either Range or the
// Period1/Period2 pair is used; Period wins when both are set.
type ChartParams struct {
	Range    string
	Interval string
	Period1  time.Time
	Period2  time.Time
}

// Meta is the subset of chart metadata we use.
type Meta struct {
	Symbol             string   `json:"symbol"`
	Currency           string   `json:"currency"`
	ExchangeName       string   `json:"exchangeName"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	RegularMarketTime  int64    `json:"regularMarketTime"`
}

// Point is one row of a chart. Nullable fields stay nil when Yahoo reports null.
type Point struct {
	Time     time.Time
	Close    *float64
	AdjClose *float64
	Volume   *int64
}

// Chart is the decoded chart response.
type Chart struct {
	Meta   Meta
	Points []Point
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       Meta    `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// GetChart retrieves /v8/finance/chart/{symbol}.
func (c *Client) GetChart(ctx context.Context, symbol string, params ChartParams, opts ...ClientOption) (*Chart, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      maps.Clone(c.query),
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	if query == nil {
		query = url.Values{}
	}
	if params.Interval == "" {
		params.Interval = "1d"
	}
	query.Set("interval", params.Interval)
	if !params.Period1.IsZero() && !params.Period2.IsZero() {
		query.Set("period1", strconv.FormatInt(params.Period1.Unix(), 10))
		query.Set("period2", strconv.FormatInt(params.Period2.Unix(), 10))
	} else {
		r := params.Range
		if r == "" {
			r = "1d"
		}
		query.Set("range", r)
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", override.baseURL, url.PathEscape(symbol), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header
	req.Header.Set("Accept", "application/json")

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: symbol %s not found", ErrNoData, symbol)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized")
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited")
	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body chartResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding chart response: %w", err)
	}
	if e := body.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo error %s: %s", e.Code, e.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	r := body.Chart.Result[0]
	chart := &Chart{Meta: r.Meta, Points: make([]Point, 0, len(r.Timestamp))}
	for i, ts := range r.Timestamp {
		p := Point{Time: time.Unix(ts, 0).UTC()}
		if len(r.Indicators.Quote) > 0 {
			q := r.Indicators.Quote[0]
			if i < len(q.Close) {
				p.Close = q.Close[i]
			}
			if i < len(q.Volume) {
				p.Volume = q.Volume[i]
			}
		}
		if len(r.Indicators.AdjClose) > 0 && i < len(r.Indicators.AdjClose[0].AdjClose) {
			p.AdjClose = r.Indicators.AdjClose[0].AdjClose[i]
		}
		chart.Points = append(chart.Points, p)
	}
	return chart, nil
}
