package geo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/valyala/fasthttp"

	"nightcircle/internal/logging"
	"nightcircle/internal/metrics"
	"nightcircle/internal/models"
)

// ErrUpstreamTimeout is returned by geocoders that ran out of time.
var ErrUpstreamTimeout = errors.New("geocoder timed out")

// Place is the raw answer of a reverse geocoder.
type Place struct {
	Area       string
	PostalCode string
}

// Geocoder resolves coordinates to a coarse place.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (Place, error)
}

// Area is the normalised result used for group naming.
type Area struct {
	Code       string
	PostalCode string
	Fallback   bool
}

// Resolver turns coordinates into an Area. It never fails: timeouts and
// upstream errors are absorbed by the deterministic fallback.
type Resolver struct {
	geocoder Geocoder
	timeout  time.Duration
}

func NewResolver(g Geocoder, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{geocoder: g, timeout: timeout}
}

func (r *Resolver) Resolve(ctx context.Context, p models.Point) Area {
	if r == nil || r.geocoder == nil {
		metrics.GeocoderFallbacks.WithLabelValues("disabled").Inc()
		return Area{Code: FallbackArea, PostalCode: FallbackPostalCode(p.Lat, p.Lng), Fallback: true}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		place Place
		err   error
	}
	done := make(chan result, 1)
	go func() {
		place, err := r.geocoder.Reverse(ctx, p.Lat, p.Lng)
		done <- result{place, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("%w: %v", ErrUpstreamTimeout, ctx.Err())
	}

	if res.err != nil {
		reason := "error"
		if errors.Is(res.err, ErrUpstreamTimeout) || errors.Is(res.err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.GeocoderFallbacks.WithLabelValues(reason).Inc()
		logging.Warn().Err(res.err).Float64("lat", p.Lat).Float64("lng", p.Lng).Msg("geocoding failed, using fallback code")
		return Area{Code: FallbackArea, PostalCode: FallbackPostalCode(p.Lat, p.Lng), Fallback: true}
	}

	area := Area{Code: NormalizeArea(res.place.Area), PostalCode: NormalizePostalCode(res.place.PostalCode)}
	if area.PostalCode == "" {
		metrics.GeocoderFallbacks.WithLabelValues("no_postcode").Inc()
		area.PostalCode = FallbackPostalCode(p.Lat, p.Lng)
		area.Fallback = true
	}
	return area
}

// HTTPGeocoderConfig configures the Nominatim + GeoNames lookup.
type HTTPGeocoderConfig struct {
	NominatimURL     string
	UserAgent        string
	GeoNamesURL      string
	GeoNamesUsername string
	Timeout          time.Duration
}

// HTTPGeocoder asks Nominatim for the area name and GeoNames for the postal
// code. Both calls go through one circuit breaker so a dead upstream stops
// costing a timeout per location update.
type HTTPGeocoder struct {
	cfg    HTTPGeocoderConfig
	client *fasthttp.Client
	cb     *gobreaker.CircuitBreaker[Place]
}

func NewHTTPGeocoder(cfg HTTPGeocoderConfig) *HTTPGeocoder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	name := "geocoder"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[Place](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &HTTPGeocoder{
		cfg: cfg,
		client: &fasthttp.Client{
			Name:         cfg.UserAgent,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
		cb: cb,
	}
}

func (g *HTTPGeocoder) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	return g.cb.Execute(func() (Place, error) {
		area, err := g.lookupArea(ctx, lat, lng)
		if err != nil {
			return Place{}, err
		}
		// A missing postcode is not an upstream failure; the resolver falls back.
		postal, err := g.lookupPostalCode(ctx, lat, lng)
		if err != nil {
			logging.Debug().Err(err).Msg("postal code lookup failed")
		}
		return Place{Area: area, PostalCode: postal}, nil
	})
}

func (g *HTTPGeocoder) lookupArea(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lng))
	q.Set("addressdetails", "1")

	var body struct {
		Address map[string]string `json:"address"`
	}
	if err := g.getJSON(ctx, g.cfg.NominatimURL+"?"+q.Encode(), &body); err != nil {
		return "", err
	}
	for _, key := range []string{"suburb", "city_district", "town", "city", "village", "hamlet", "county", "state", "country"} {
		if v := body.Address[key]; v != "" {
			return v, nil
		}
	}
	return "", nil
}

func (g *HTTPGeocoder) lookupPostalCode(ctx context.Context, lat, lng float64) (string, error) {
	if g.cfg.GeoNamesUsername == "" {
		return "", nil
	}
	q := url.Values{}
	q.Set("lat", formatCoord(lat))
	q.Set("lng", formatCoord(lng))
	q.Set("username", g.cfg.GeoNamesUsername)
	q.Set("maxRows", "1")

	var body struct {
		PostalCodes []struct {
			PostalCode string `json:"postalCode"`
		} `json:"postalCodes"`
	}
	if err := g.getJSON(ctx, g.cfg.GeoNamesURL+"?"+q.Encode(), &body); err != nil {
		return "", err
	}
	if len(body.PostalCodes) == 0 {
		return "", nil
	}
	return body.PostalCodes[0].PostalCode, nil
}

func (g *HTTPGeocoder) getJSON(ctx context.Context, uri string, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept-Language", "en")
	if g.cfg.UserAgent != "" {
		req.Header.SetUserAgent(g.cfg.UserAgent)
	}

	timeout := g.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return ErrUpstreamTimeout
	}

	if err := g.client.DoTimeout(req, resp, timeout); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("geocoder returned status %d", resp.StatusCode())
	}
	return json.Unmarshal(resp.Body(), out)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
