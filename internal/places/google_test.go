package places

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/transfer-booking/internal/geo"
)

func TestFindPlaceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/findplacefromtext/json", r.URL.Path)
		assert.Equal(t, "Istanbul Airport, Turkey", r.URL.Query().Get("input"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"status":"OK","candidates":[{"place_id":"ChIJ-ist"}]}`)
	}))
	defer srv.Close()

	id, err := NewGoogleClient(srv.URL, "k", time.Second).FindPlaceID(context.Background(), "Istanbul Airport, Turkey")
	require.NoError(t, err)
	assert.Equal(t, "ChIJ-ist", id)
}

func TestFindPlaceIDZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ZERO_RESULTS","candidates":[]}`)
	}))
	defer srv.Close()

	_, err := NewGoogleClient(srv.URL, "k", time.Second).FindPlaceID(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDetailsRefreshesStalePlaceID(t *testing.T) {
	var detailIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/details/json":
			id := r.URL.Query().Get("place_id")
			detailIDs = append(detailIDs, id)
			if id == "stale" {
				fmt.Fprint(w, `{"status":"INVALID_REQUEST"}`)
				return
			}
			fmt.Fprint(w, `{"status":"OK","result":{"name":"Istanbul Airport","formatted_address":"Tayakadın, Arnavutköy/İstanbul","geometry":{"location":{"lat":41.2753,"lng":28.7519}}}}`)
		case "/findplacefromtext/json":
			fmt.Fprint(w, `{"status":"OK","candidates":[{"place_id":"fresh"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	loc, err := NewGoogleClient(srv.URL, "k", time.Second).Details(context.Background(), "stale", "Istanbul Airport, Turkey")
	require.NoError(t, err)
	assert.Equal(t, []string{"stale", "fresh"}, detailIDs)
	assert.Equal(t, "fresh", loc.PlaceID)
	assert.Equal(t, 41.2753, loc.Lat)
	assert.Equal(t, "Tayakadın, Arnavutköy/İstanbul", loc.Address)
}

func TestDetailsMissingGeometry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OK","result":{"name":"x"}}`)
	}))
	defer srv.Close()

	_, err := NewGoogleClient(srv.URL, "k", time.Second).Details(context.Background(), "id", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAutocompleteRestriction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lodging", r.URL.Query().Get("types"))
		assert.Equal(t, "rectangle:40.000000,28.000000|42.000000,29.500000", r.URL.Query().Get("locationrestriction"))
		fmt.Fprint(w, `{"status":"OK","predictions":[{"place_id":"h1","description":"Hotel One, Istanbul"}]}`)
	}))
	defer srv.Close()

	preds, err := NewGoogleClient(srv.URL, "k", time.Second).Autocomplete(context.Background(), AutocompleteRequest{
		Input:    "hotel",
		Type:     "lodging",
		Restrict: &geo.Bounds{South: 40, West: 28, North: 42, East: 29.5},
	})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "h1", preds[0].PlaceID)
}
