package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/lifecycle"
	"github.com/ariefcatur/go-asset-lifecycle/internal/logging"
	"github.com/ariefcatur/go-asset-lifecycle/internal/memstore"
	"github.com/ariefcatur/go-asset-lifecycle/internal/metrics"
)

type stubCache struct {
	snap assets.Asset
	ok   bool
	err  error
}

func (c stubCache) Get(context.Context, string) (assets.Asset, bool, error) {
	return c.snap, c.ok, c.err
}

func newServer(t *testing.T, cache SnapshotReader) *httptest.Server {
	t.Helper()
	st := memstore.New()
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg, "")
	require.NoError(t, err)
	coord := lifecycle.NewCoordinator(st, lifecycle.Options{MaxWait: time.Second, Timeout: time.Second}, logging.Discard(), rec)

	r := NewRouter(reg)
	h := &AssetsHandler{Engine: lifecycle.NewEngine(coord, lifecycle.DefaultPolicy()), Cache: cache, Users: st, Log: logging.Discard()}
	h.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestAssignmentOverHTTP(t *testing.T) {
	srv := newServer(t, nil)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPut, "/users/u1", map[string]string{"name": "Ana"}, nil))
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPut, "/users/u2", map[string]string{"name": "Budi"}, nil))

	var asset assets.Asset
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/assets", map[string]any{"name": "Scanner", "purchase_cost": "99.90"}, &asset))
	assert.Equal(t, assets.StatusAvailable, asset.Status)

	var first lifecycle.AssignmentResult
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/assignments/",
		map[string]any{"asset_id": asset.ID, "user_id": "u1"}, &first))
	assert.Equal(t, assets.AssignmentPending, first.Assignment.Status)

	var active lifecycle.AssignmentResult
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/assignments/"+first.Assignment.ID+"/activate", nil, &active))
	assert.Equal(t, assets.StatusInUse, active.Asset.Status)
	require.NotNil(t, active.Asset.AssignedToUserID)
	assert.Equal(t, "u1", *active.Asset.AssignedToUserID)

	var closed lifecycle.AssignmentResult
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/assignments/"+first.Assignment.ID+"/close",
		map[string]string{"outcome": "COMPLETED"}, &closed))
	assert.Equal(t, assets.AssignmentCompleted, closed.Assignment.Status)
	assert.Equal(t, assets.StatusAvailable, closed.Asset.Status)

	var got assets.Asset
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/assets/"+asset.ID, nil, &got))
	assert.Equal(t, closed.Asset.Version, got.Version)
}

func TestErrorStatuses(t *testing.T) {
	srv := newServer(t, nil)
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPut, "/users/u1", map[string]string{}, nil))
	var asset assets.Asset
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/assets", map[string]any{"name": "Crate"}, &asset))

	t.Run("validation", func(t *testing.T) {
		var body map[string]any
		code := call(t, srv, http.MethodPost, "/disposals/", map[string]any{"asset_id": asset.ID, "method": "BURN"}, &body)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, body["error"], "BURN")
	})

	t.Run("not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/transfers/missing", nil, nil))
		assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/assignments/",
			map[string]any{"asset_id": asset.ID, "user_id": "ghost"}, nil))
	})

	t.Run("invalid state", func(t *testing.T) {
		var d lifecycle.DisposalResult
		require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/disposals/",
			map[string]any{"asset_id": asset.ID, "method": "SCRAP"}, &d))
		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/disposals/"+d.Disposal.ID+"/approve", nil, nil))

		code := call(t, srv, http.MethodPost, "/transfers/", map[string]any{"asset_id": asset.ID, "to_store_id": "s9"}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, code)
	})

	t.Run("bad json", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/assets", bytes.NewBufferString("{"))
		require.NoError(t, err)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestGetAssetPrefersCache(t *testing.T) {
	cached := assets.Asset{ID: "a-cached", Name: "From cache", Status: assets.StatusInUse, Version: 7}
	srv := newServer(t, stubCache{snap: cached, ok: true})

	res, err := http.Get(srv.URL + "/assets/a-cached")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "HIT", res.Header.Get("X-Cache"))
	var got assets.Asset
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, int64(7), got.Version)

	broken := newServer(t, stubCache{err: errors.New("redis down")})
	assert.Equal(t, http.StatusNotFound, call(t, broken, http.MethodGet, "/assets/a-cached", nil, nil))
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("%w: x", assets.ErrValidation):   http.StatusBadRequest,
		fmt.Errorf("%w: x", assets.ErrNotFound):     http.StatusNotFound,
		fmt.Errorf("%w: x", assets.ErrConflict):     http.StatusConflict,
		fmt.Errorf("%w: x", assets.ErrInvalidState): http.StatusUnprocessableEntity,
		assets.ErrInternal:                          http.StatusInternalServerError,
		errors.New("other"):                         http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, nil)
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/assets", map[string]any{"name": "Cart"}, nil))

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `asset_lifecycle_coordinator_operations_total{op="asset.register",outcome="ok"} 1`)
}
