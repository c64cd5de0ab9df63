// Package geo resolves the user's country from their public IP, caching the
// answer in local storage for a day.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/ideashare/internal/localstore"
	"github.com/starford/ideashare/internal/models"
)

// Default lookup endpoints.
const (
	DefaultPrimaryURL  = "https://ipapi.co/json/"
	DefaultFallbackURL = "https://api.country.is/"
)

// CacheTTL is how long a resolved country is reused.
const CacheTTL = 24 * time.Hour

var countryNames = map[string]string{
	"AR": "Argentina",
	"US": "United States",
	"ES": "Spain",
	"MX": "Mexico",
	"CL": "Chile",
	"CO": "Colombia",
	"PE": "Peru",
	"FR": "France",
	"IT": "Italy",
	"DE": "Germany",
	"BR": "Brazil",
	"UY": "Uruguay",
	"PY": "Paraguay",
	"BO": "Bolivia",
	"EC": "Ecuador",
	"VE": "Venezuela",
	"CR": "Costa Rica",
	"GT": "Guatemala",
	"HN": "Honduras",
	"NI": "Nicaragua",
	"PA": "Panama",
	"SV": "El Salvador",
	"DO": "Dominican Republic",
	"CU": "Cuba",
	"PR": "Puerto Rico",
}

// CountryName maps an ISO code to a display name, or returns the code.
func CountryName(code string) string {
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// Option configures a Locator.
type Option func(*Locator)

// WithURLs overrides the lookup endpoints. An empty fallback disables it.
func WithURLs(primary, fallback string) Option {
	return func(l *Locator) {
		l.primaryURL = primary
		l.fallbackURL = fallback
	}
}

// WithHTTPClient sets the client used for lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Locator) { l.client = c }
}

// WithClock overrides time.Now for cache age checks.
func WithClock(now func() time.Time) Option {
	return func(l *Locator) { l.now = now }
}

// Locator looks up and caches the user's country.
type Locator struct {
	store       localstore.Store
	logger      *slog.Logger
	client      *http.Client
	primaryURL  string
	fallbackURL string
	now         func() time.Time
}

// New creates a Locator.
func New(store localstore.Store, logger *slog.Logger, opts ...Option) *Locator {
	l := &Locator{
		store:       store,
		logger:      logger,
		client:      &http.Client{Timeout: 5 * time.Second},
		primaryURL:  DefaultPrimaryURL,
		fallbackURL: DefaultFallbackURL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lookup returns the cached country if it is younger than CacheTTL,
// otherwise queries the endpoints. Total failure yields models.UnknownCountry,
// which is cached like any other answer.
func (l *Locator) Lookup(ctx context.Context) string {
	if country, ok := l.cached(); ok {
		return country
	}
	country := l.resolve(ctx)
	if err := l.store.Set(localstore.KeyCountry, country); err != nil {
		l.logger.Warn("geo: cache write failed", slog.String("error", err.Error()))
		return country
	}
	if err := l.store.Set(localstore.KeyCountryTime, strconv.FormatInt(l.now().UnixMilli(), 10)); err != nil {
		l.logger.Warn("geo: cache write failed", slog.String("error", err.Error()))
	}
	return country
}

func (l *Locator) cached() (string, bool) {
	country, ok, err := l.store.Get(localstore.KeyCountry)
	if err != nil || !ok || country == "" {
		return "", false
	}
	raw, ok, err := l.store.Get(localstore.KeyCountryTime)
	if err != nil || !ok {
		return "", false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", false
	}
	if l.now().Sub(time.UnixMilli(ms)) >= CacheTTL {
		return "", false
	}
	return country, true
}

func (l *Locator) resolve(ctx context.Context) string {
	var primary struct {
		CountryName string `json:"country_name"`
	}
	err := l.fetch(ctx, l.primaryURL, &primary)
	if err == nil && primary.CountryName != "" {
		return primary.CountryName
	}
	if err == nil {
		err = errors.New("empty country_name")
	}
	l.logger.Warn("geo: primary lookup failed", slog.String("error", err.Error()))

	if l.fallbackURL == "" {
		return models.UnknownCountry
	}
	var fallback struct {
		Country string `json:"country"`
	}
	if err := l.fetch(ctx, l.fallbackURL, &fallback); err != nil || fallback.Country == "" {
		if err == nil {
			err = errors.New("empty country")
		}
		l.logger.Warn("geo: fallback lookup failed", slog.String("error", err.Error()))
		return models.UnknownCountry
	}
	return CountryName(fallback.Country)
}

func (l *Locator) fetch(ctx context.Context, url string, dst any) error {
	if url == "" {
		return errors.New("no url configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
