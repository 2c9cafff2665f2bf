package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserveSync/internal/metrics"
	"reserveSync/internal/model"
	"reserveSync/internal/storage"
	"reserveSync/internal/syncer"
)

type staticStatus syncer.Status

func (s staticStatus) Status() syncer.Status { return syncer.Status(s) }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithTokens(t, nil)
}

func newTestServerWithTokens(t *testing.T, tokens TokenResolver) *httptest.Server {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.UpsertPair(context.Background(), model.Pair{
		Address: "P1", TokenA: "A", TokenB: "B", ReserveA: big.NewInt(4), ReserveB: big.NewInt(10),
	}))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Cycles.Inc()

	srv, err := New(":0", staticStatus{LastSequence: 77, Cycles: 3, Running: true}, store, tokens, reg, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.SetupRouter())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+RouteHealth, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusRoute(t *testing.T) {
	ts := newTestServer(t)
	var st syncer.Status
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+RouteStatus, &st))
	assert.Equal(t, uint32(77), st.LastSequence)
	assert.Equal(t, uint64(3), st.Cycles)
}

func TestPairRoute(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Data PairView `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/pairs/P1", &body))
	assert.Equal(t, "4", body.Data.ReserveA)
	assert.Equal(t, "10", body.Data.ReserveB)
	assert.Equal(t, "2.5", body.Data.Price)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/pairs/missing", nil))
}

type fixedTokens map[string]model.TokenMeta

func (f fixedTokens) Resolve(_ context.Context, token string) (model.TokenMeta, error) {
	meta, ok := f[token]
	if !ok {
		return model.TokenMeta{}, errors.New("unknown token")
	}
	return meta, nil
}

func TestPairRouteScalesByDecimals(t *testing.T) {
	ts := newTestServerWithTokens(t, fixedTokens{
		"A": {Address: "A", Symbol: "AAA", Decimals: 1},
		"B": {Address: "B", Symbol: "BBB", Decimals: 0},
	})

	var body struct {
		Data PairView `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/pairs/P1", &body))
	assert.Equal(t, "25", body.Data.Price)
	require.NotNil(t, body.Data.MetaA)
	assert.Equal(t, "AAA", body.Data.MetaA.Symbol)
}

func TestPairRouteFallsBackToRawPrice(t *testing.T) {
	ts := newTestServerWithTokens(t, fixedTokens{})

	var body struct {
		Data PairView `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/pairs/P1", &body))
	assert.Equal(t, "2.5", body.Data.Price)
	assert.Nil(t, body.Data.MetaA)
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + RouteMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "reserve_sync_cycles_total 1")
}

func rpcCall(t *testing.T, url, method string, params ...interface{}) json.RawMessage {
	t.Helper()
	if params == nil {
		params = []interface{}{}
	}
	payload, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)

	resp, err := http.Post(url+RouteRPC, "application/json", strings.NewReader(string(payload)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Nil(t, out.Error)
	return out.Result
}

func TestRPCStatus(t *testing.T) {
	ts := newTestServer(t)

	var st syncer.Status
	require.NoError(t, json.Unmarshal(rpcCall(t, ts.URL, "syncer_status"), &st))
	assert.Equal(t, uint32(77), st.LastSequence)
}

func TestRPCPair(t *testing.T) {
	ts := newTestServer(t)

	var view *PairView
	require.NoError(t, json.Unmarshal(rpcCall(t, ts.URL, "syncer_pair", "P1"), &view))
	require.NotNil(t, view)
	assert.Equal(t, "A", view.TokenA)

	view = nil
	require.NoError(t, json.Unmarshal(rpcCall(t, ts.URL, "syncer_pair", "missing"), &view))
	assert.Nil(t, view)
}
