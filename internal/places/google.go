package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/transfer-booking/internal/models"
)

const DefaultEndpoint = "https://maps.googleapis.com/maps/api/place"

// GoogleClient talks to the Places web service.
type GoogleClient struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewGoogleClient(endpoint, key string, timeout time.Duration) *GoogleClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GoogleClient{Endpoint: strings.TrimRight(endpoint, "/"), Key: key, Client: &http.Client{Timeout: timeout}}
}

func (g *GoogleClient) FindPlaceID(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("input", query)
	q.Set("inputtype", "textquery")
	q.Set("fields", "place_id")
	var out struct {
		Status     string `json:"status"`
		Candidates []struct {
			PlaceID string `json:"place_id"`
		} `json:"candidates"`
	}
	if err := g.get(ctx, "/findplacefromtext/json", q, &out); err != nil {
		return "", err
	}
	if err := statusErr(out.Status); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || out.Candidates[0].PlaceID == "" {
		return "", ErrNotFound
	}
	return out.Candidates[0].PlaceID, nil
}

// Details fetches geometry and address. An INVALID_REQUEST answer means the
// id went stale; a fresh id is resolved from query once.
func (g *GoogleClient) Details(ctx context.Context, placeID, query string) (models.Location, error) {
	loc, err := g.details(ctx, placeID)
	if !errors.Is(err, ErrInvalidRequest) || query == "" {
		return loc, err
	}
	fresh, err := g.FindPlaceID(ctx, query)
	if err != nil {
		return models.Location{}, err
	}
	return g.details(ctx, fresh)
}

func (g *GoogleClient) details(ctx context.Context, placeID string) (models.Location, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "geometry,formatted_address,name")
	var out struct {
		Status string `json:"status"`
		Result struct {
			Name             string `json:"name"`
			FormattedAddress string `json:"formatted_address"`
			Geometry         *struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
	}
	if err := g.get(ctx, "/details/json", q, &out); err != nil {
		return models.Location{}, err
	}
	if err := statusErr(out.Status); err != nil {
		return models.Location{}, err
	}
	if out.Result.Geometry == nil {
		return models.Location{}, ErrNotFound
	}
	return models.Location{
		Name:    out.Result.Name,
		PlaceID: placeID,
		Lat:     out.Result.Geometry.Location.Lat,
		Lng:     out.Result.Geometry.Location.Lng,
		Address: out.Result.FormattedAddress,
	}, nil
}

func (g *GoogleClient) Autocomplete(ctx context.Context, req AutocompleteRequest) ([]Prediction, error) {
	q := url.Values{}
	q.Set("input", req.Input)
	if req.Type != "" {
		q.Set("types", req.Type)
	}
	if b := req.Restrict; b != nil {
		q.Set("locationrestriction", fmt.Sprintf("rectangle:%.6f,%.6f|%.6f,%.6f", b.South, b.West, b.North, b.East))
	}
	var out struct {
		Status      string       `json:"status"`
		Predictions []Prediction `json:"predictions"`
	}
	if err := g.get(ctx, "/autocomplete/json", q, &out); err != nil {
		return nil, err
	}
	if out.Status == "ZERO_RESULTS" {
		return []Prediction{}, nil
	}
	if err := statusErr(out.Status); err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

func (g *GoogleClient) get(ctx context.Context, path string, q url.Values, dst any) error {
	q.Set("key", g.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Endpoint+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places %s: http status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("places decode: %w", err)
	}
	return nil
}

func statusErr(status string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return ErrNotFound
	case "INVALID_REQUEST":
		return ErrInvalidRequest
	default:
		return fmt.Errorf("places: provider status %s", status)
	}
}
