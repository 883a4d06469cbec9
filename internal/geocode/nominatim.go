package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/utils"
)

// NominatimGeocoder queries an OpenStreetMap Nominatim instance. Public instances allow about
// one request per second, which the limiter enforces across goroutines.
type NominatimGeocoder struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *http.Client

	once    sync.Once
	limiter *rate.Limiter
	mu      sync.Mutex
	cache   map[string]Result
}

type nominatimItem struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

func (g *NominatimGeocoder) init() {
	g.once.Do(func() {
		if g.Client == nil {
			g.Client = &http.Client{Timeout: 10 * time.Second}
		}
		if g.BaseURL == "" {
			g.BaseURL = "https://nominatim.openstreetmap.org"
		}
		if g.UserAgent == "" {
			g.UserAgent = "reliefroute-backend"
		}
		if g.MinInterval <= 0 {
			g.MinInterval = time.Second
		}
		g.limiter = rate.NewLimiter(rate.Every(g.MinInterval), 1)
		g.cache = map[string]Result{}
	})
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (Result, error) {
	g.init()
	if query == "" {
		return Result{}, ErrNotFound
	}

	g.mu.Lock()
	if cached, ok := g.cache[query]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("nominatim http error: %s", resp.Status)
	}

	var items []nominatimItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return Result{}, err
	}
	result, err := parseNominatimItems(items)
	if err != nil {
		return Result{}, err
	}

	g.mu.Lock()
	g.cache[query] = result
	g.mu.Unlock()
	return result, nil
}

func parseNominatimItems(items []nominatimItem) (Result, error) {
	if len(items) == 0 {
		return Result{}, ErrNotFound
	}
	lat, err := strconv.ParseFloat(items[0].Lat, 64)
	if err != nil {
		return Result{}, err
	}
	lon, err := strconv.ParseFloat(items[0].Lon, 64)
	if err != nil {
		return Result{}, err
	}
	if !utils.ValidCoordinates(lat, lon) || (lat == 0 && lon == 0 && items[0].DisplayName == "") {
		return Result{}, ErrNotFound
	}
	return Result{
		Coords:      models.Coordinates{Lat: lat, Lon: lon},
		DisplayName: items[0].DisplayName,
		Confidence:  items[0].Importance,
	}, nil
}
