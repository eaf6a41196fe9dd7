package farm

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/mock"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/send"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls  int32
	values map[string][]string
	err    error
}

func (f *countingFetcher) fetch(_ context.Context, serverName string) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.values[serverName], nil
}

func (f *countingFetcher) count() int { return int(atomic.LoadInt32(&f.calls)) }

func TestServerInfoCacheFetchesOnce(t *testing.T) {
	ctx := context.Background()
	pools := &countingFetcher{values: map[string][]string{"farm-1": {"low", "high"}}}
	c := NewServerInfoCache(map[ResourceKind]FetchFunc{Pools: pools.fetch})

	first, err := c.Pools(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "high"}, first)
	assert.Equal(t, 1, pools.count())

	second, err := c.Pools(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, pools.count())
}

func TestServerInfoCacheKeepsServersApart(t *testing.T) {
	ctx := context.Background()
	groups := &countingFetcher{values: map[string][]string{
		"farm-1": {"cpu"},
		"farm-2": {"gpu"},
	}}
	c := NewServerInfoCache(map[ResourceKind]FetchFunc{Groups: groups.fetch})

	farm1, err := c.Groups(ctx, "farm-1")
	require.NoError(t, err)
	farm2, err := c.Groups(ctx, "farm-2")
	require.NoError(t, err)

	assert.Equal(t, []string{"cpu"}, farm1)
	assert.Equal(t, []string{"gpu"}, farm2)
	assert.Equal(t, 2, groups.count())
}

func TestServerInfoCacheKeepsKindsApart(t *testing.T) {
	ctx := context.Background()
	pools := &countingFetcher{values: map[string][]string{"farm": {"low"}}}
	machines := &countingFetcher{values: map[string][]string{"farm": {"m1"}}}
	c := NewServerInfoCache(map[ResourceKind]FetchFunc{Pools: pools.fetch, Machines: machines.fetch})

	p, err := c.Pools(ctx, "farm")
	require.NoError(t, err)
	m, err := c.Machines(ctx, "farm")
	require.NoError(t, err)
	assert.Equal(t, []string{"low"}, p)
	assert.Equal(t, []string{"m1"}, m)

	_, err = c.LimitGroups(ctx, "farm")
	assert.Error(t, err, "no fetcher for limit groups")

	assert.Equal(t, map[ResourceKind][]string{Pools: {"low"}, Machines: {"m1"}}, c.Snapshot("farm"))
	assert.Empty(t, c.Snapshot("other"))
}

func TestServerInfoCacheDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	fetcher := &countingFetcher{err: &deadline.WebserviceError{Endpoint: "http://farm/api/pools", Err: errors.New("refused")}}
	c := NewServerInfoCache(map[ResourceKind]FetchFunc{Pools: fetcher.fetch})

	_, err := c.Pools(ctx, "farm")
	require.Error(t, err)
	assert.True(t, deadline.IsWebserviceError(err))

	fetcher.err = nil
	fetcher.values = map[string][]string{"farm": {"low"}}
	pools, err := c.Pools(ctx, "farm")
	require.NoError(t, err)
	assert.Equal(t, []string{"low"}, pools)
	assert.Equal(t, 2, fetcher.count())
}

func TestServerInfoCacheCachesEmptyLists(t *testing.T) {
	ctx := context.Background()
	fetcher := &countingFetcher{}
	c := NewServerInfoCache(map[ResourceKind]FetchFunc{Machines: fetcher.fetch})

	for i := 0; i < 3; i++ {
		machines, err := c.Machines(ctx, "farm")
		require.NoError(t, err)
		assert.NotNil(t, machines)
		assert.Empty(t, machines)
	}
	assert.Equal(t, 1, fetcher.count())
}

func TestServerInfoCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	fetcher := &countingFetcher{values: map[string][]string{"farm": {"low", "high"}}}
	c := NewServerInfoCache(map[ResourceKind]FetchFunc{Pools: fetcher.fetch})

	pools, err := c.Pools(ctx, "farm")
	require.NoError(t, err)
	pools[0] = "changed"

	pools, err = c.Pools(ctx, "farm")
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "high"}, pools)
}

func TestServerInfoCacheSharesConcurrentFetches(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	var calls int32
	fetch := func(context.Context, string) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []string{"low"}, nil
	}
	c := NewServerInfoCache(map[ResourceKind]FetchFunc{Pools: fetch})

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan []string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pools, err := c.Pools(ctx, "farm")
			assert.NoError(t, err)
			results <- pools
		}()
	}

	// Give the workers time to block on the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for pools := range results {
		assert.Equal(t, []string{"low"}, pools)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClientFetchers(t *testing.T) {
	ctx := context.Background()
	farm := mock.NewFarm(mock.FarmData{Pools: []string{"low", "high"}, Machines: []string{"m1", "m2"}})
	srv := httptest.NewServer(farm.Handler())
	defer srv.Close()

	servers := deadline.ServersConfig{{Name: "farm-1", URL: srv.URL}}
	require.NoError(t, servers.ValidateAndDefault())

	client := NewClient(logging.MakeGrip(send.MakeInternalLogger()))
	c := NewServerInfoCache(ClientFetchers(client, servers.Get))

	pools, err := c.Pools(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "high"}, pools)
	assert.Equal(t, 1, farm.Requests(mock.ResourcePools))

	pools, err = c.Pools(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "high"}, pools)
	assert.Equal(t, 1, farm.Requests(mock.ResourcePools), "second lookup must not issue a request")

	_, err = c.Pools(ctx, "unknown")
	assert.Error(t, err)
	assert.Equal(t, 1, farm.TotalRequests())
}
