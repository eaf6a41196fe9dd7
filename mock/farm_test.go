package mock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFarmHandler(t *testing.T) {
	farm := NewFarm(FarmData{Pools: []string{"low", "high"}, Username: "user", Password: "pass"})
	srv := httptest.NewServer(farm.Handler())
	defer srv.Close()

	get := func(path string, auth bool) *http.Response {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		if auth {
			req.SetBasicAuth("user", "pass")
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("RequiresAuth", func(t *testing.T) {
		resp := get("/api/pools?NamesOnly=true", false)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("NamesOnly", func(t *testing.T) {
		resp := get("/api/pools?NamesOnly=true", true)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var names []string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
		assert.Equal(t, []string{"low", "high"}, names)
	})
	t.Run("Objects", func(t *testing.T) {
		resp := get("/api/pools", true)
		defer resp.Body.Close()

		var objects []map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&objects))
		require.Len(t, objects, 2)
		assert.Equal(t, "low", objects[0]["Name"])
	})
	t.Run("ForcedStatus", func(t *testing.T) {
		farm.SetStatus(ResourceGroups, http.StatusServiceUnavailable)
		resp := get("/api/groups", true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
	t.Run("UnknownResource", func(t *testing.T) {
		resp := get("/api/jobs", true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	assert.Equal(t, 5, farm.TotalRequests())
	assert.Equal(t, 3, farm.Requests(ResourcePools))
}
