package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLookuper struct {
	calls atomic.Int32
	place *Place
	err   error
	delay time.Duration
	// slow limits delay to one query when set.
	slow string
}

func (f *fakeLookuper) Lookup(ctx context.Context, query string) (*Place, error) {
	f.calls.Add(1)
	if f.delay > 0 && (f.slow == "" || f.slow == query) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	p := *f.place
	p.DisplayName = query
	return &p, nil
}

func TestLooksLikeStreetAddress(t *testing.T) {
	valid := []string{
		"221B Baker Street, London",
		"10 Downing Street",
		"  1600 Amphitheatre Parkway ",
		"12-14 Rue de Rivoli",
	}
	for _, s := range valid {
		assert.True(t, LooksLikeStreetAddress(s), s)
	}

	invalid := []string{
		"",
		"Central Park",
		"42",
		"the pub round the corner",
	}
	for _, s := range invalid {
		assert.False(t, LooksLikeStreetAddress(s), s)
	}
}

func TestClientLookup(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"51.5033","lon":"-0.1276","display_name":"10, Downing Street, London",
			"address":{"house_number":"10","road":"Downing Street","town":"London","postcode":"SW1A 2AA","country":"United Kingdom"}}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "huddle-test", time.Second)
	p, err := c.Lookup(context.Background(), "10 Downing Street")
	require.NoError(t, err)

	assert.Equal(t, "huddle-test", gotUA)
	assert.Equal(t, "10 Downing Street", gotQuery)
	assert.InDelta(t, 51.5033, p.Latitude, 1e-9)
	assert.InDelta(t, -0.1276, p.Longitude, 1e-9)
	assert.Equal(t, "London", p.City)
	assert.True(t, p.IsStreetAddress())
}

func TestClientLookupNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Lookup(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestClientLookupTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 50*time.Millisecond).Lookup(context.Background(), "1 Slow Road")
	assert.Error(t, err)
}

func TestPlaceIsStreetAddress(t *testing.T) {
	assert.False(t, (&Place{Road: "Main St"}).IsStreetAddress())
	assert.False(t, (&Place{HouseNumber: "5"}).IsStreetAddress())
	assert.True(t, (&Place{HouseNumber: "5", Road: "Main St"}).IsStreetAddress())
	var nilPlace *Place
	assert.False(t, nilPlace.IsStreetAddress())
}

func TestCachedLookupCachesHitsOnly(t *testing.T) {
	ctx := context.Background()
	inner := &fakeLookuper{place: &Place{HouseNumber: "1", Road: "Main"}}
	c := NewCachedLookup(inner, NewMemoryCache(), time.Minute, zap.NewNop())

	_, err := c.Lookup(ctx, "1 Main Street")
	require.NoError(t, err)
	_, err = c.Lookup(ctx, "  1  MAIN street ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())

	failing := &fakeLookuper{err: ErrNoMatch}
	c = NewCachedLookup(failing, NewMemoryCache(), time.Minute, zap.NewNop())
	_, err = c.Lookup(ctx, "1 Nowhere")
	assert.ErrorIs(t, err, ErrNoMatch)
	_, err = c.Lookup(ctx, "1 Nowhere")
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, int32(2), failing.calls.Load())
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", &Place{Road: "r"}, time.Minute))
	p, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, p)

	now = now.Add(2 * time.Minute)
	p, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDebouncerSupersedesEarlierCalls(t *testing.T) {
	inner := &fakeLookuper{place: &Place{HouseNumber: "1", Road: "Main"}}
	d := NewDebouncer(inner, 50*time.Millisecond)

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = d.Do(context.Background(), "user-1", "1 Ma")
	}()

	time.Sleep(10 * time.Millisecond)
	p, err := d.Do(context.Background(), "user-1", "1 Main Street")
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, "1 Main Street", p.DisplayName)
	assert.ErrorIs(t, firstErr, ErrSuperseded)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestDebouncerCancelsInFlightLookup(t *testing.T) {
	inner := &fakeLookuper{place: &Place{}, delay: 200 * time.Millisecond, slow: "1 First Street"}
	d := NewDebouncer(inner, 0)

	done := make(chan error, 1)
	go func() {
		_, err := d.Do(context.Background(), "k", "1 First Street")
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	_, err := d.Do(context.Background(), "k", "2 Second Street")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("in-flight lookup was not cancelled")
	}
}

func TestDebouncerKeysAreIndependent(t *testing.T) {
	inner := &fakeLookuper{place: &Place{}}
	d := NewDebouncer(inner, 10*time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			_, errs[i] = d.Do(context.Background(), key, "1 Main Street")
		}(i, key)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestDebouncerPassesThroughLookupErrors(t *testing.T) {
	d := NewDebouncer(&fakeLookuper{err: errors.New("boom")}, 0)
	_, err := d.Do(context.Background(), "k", "1 Main Street")
	assert.EqualError(t, err, "boom")
}
