// Package datagouv fetches IRVE charging station records from the
// data.gouv.fr tabular API, one request per Breton department, with bounded
// parallelism and per-department failure isolation.
package datagouv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aulemarouille/green-spots-back/internal/mapper"
	"github.com/aulemarouille/green-spots-back/internal/model"
)

// DefaultBaseURL is the IRVE consolidated dataset on the tabular API.
const DefaultBaseURL = "https://tabular-api.data.gouv.fr/api/resources/eb76d20a-8501-400e-b336-d85724de5435/data/"

// Options configures the data.gouv.fr client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	Departments []int
	Workers     int
	PageSize    int
	RateLimit   rate.Limit
}

// Client queries the tabular API. The underlying HTTP client is shared
// across concurrent department fetches; the owner must call Close when done.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	departments []int
	workers     int
	pageSize    int
}

// New creates a Client, filling in defaults for any zero option: the
// consolidated IRVE resource, a 15s request timeout, the four Breton
// departments, 4 workers, and 50 rows per page.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if len(opts.Departments) == 0 {
		opts.Departments = []int{22, 29, 35, 56}
	}
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	if opts.PageSize == 0 {
		opts.PageSize = 50
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 10
	}
	return &Client{
		baseURL:     opts.BaseURL,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(opts.RateLimit, int(opts.RateLimit)),
		departments: opts.Departments,
		workers:     opts.Workers,
		pageSize:    opts.PageSize,
	}
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// tabularPage is the response envelope of the tabular API.
type tabularPage struct {
	Data []map[string]any `json:"data"`
}

// FetchChargingStations retrieves and maps charging stations for every
// configured department. Department fetches run concurrently under a bounded
// group; a failed department logs and contributes nothing, it never cancels
// its siblings. Order across departments is completion order and carries no
// meaning; within a department, mapped order follows the API's row order.
func (c *Client) FetchChargingStations(ctx context.Context) []model.Spot {
	var (
		mu  sync.Mutex
		all []model.Spot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, dept := range c.departments {
		dept := dept
		g.Go(func() error {
			spots, err := c.fetchDepartment(gctx, dept)
			if err != nil {
				zap.L().Error("failed to fetch charging stations",
					zap.Int("department", dept),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			all = append(all, spots...)
			mu.Unlock()
			return nil
		})
	}

	// Task funcs never return an error, so Wait only blocks.
	_ = g.Wait()

	return all
}

// fetchDepartment retrieves the first result page for one department and
// maps its rows. Only page 0 is requested; the consolidated dataset rarely
// holds more than a page per department filter.
func (c *Client) fetchDepartment(ctx context.Context, department int) ([]model.Spot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.URL.RawQuery = c.queryParams(department).Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "department %d request", department)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("department %d: unexpected status %d", department, resp.StatusCode)
	}

	var page tabularPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, eris.Wrapf(err, "department %d: decode response", department)
	}

	spots := mapper.StationsToSpots(page.Data)
	zap.L().Debug("fetched charging stations",
		zap.Int("department", department),
		zap.Int("rows", len(page.Data)),
		zap.Int("spots", len(spots)),
	)
	return spots, nil
}

func (c *Client) queryParams(department int) url.Values {
	params := url.Values{}
	params.Set("columns", "adresse_station,coordonneesXY,nbre_pdc,nom_station,puissance_nominale")
	params.Set("puissance_nominale__differs", "0")
	params.Set("adresse_station__contains", fmt.Sprintf(", %d", department))
	params.Set("page", "0")
	params.Set("page_size", strconv.Itoa(c.pageSize))
	return params
}
