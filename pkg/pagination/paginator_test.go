package pagination

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagesOfSizes returns a PageFunc serving pages with the given lengths and
// records every page index requested.
func pagesOfSizes(sizes []int, calls *[]int) PageFunc[int] {
	return func(ctx context.Context, page, perPage int) ([]int, error) {
		*calls = append(*calls, page)
		if page > len(sizes) {
			return nil, nil
		}
		out := make([]int, sizes[page-1])
		for i := range out {
			out[i] = page*1000 + i
		}
		return out, nil
	}
}

func newTestPaginator(cfg Config) (*Paginator[int], *[]time.Duration) {
	p := New[int](cfg, zerolog.Nop())
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return p, &slept
}

func TestFetchAll_TerminatesOnEmptyPage(t *testing.T) {
	p, slept := newTestPaginator(DefaultConfig())
	var calls []int

	records, err := p.FetchAll(context.Background(), "/test", pagesOfSizes([]int{50, 50, 30, 0}, &calls))
	require.NoError(t, err)

	assert.Len(t, records, 130)
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
	// Delay after every fetch, including the empty one
	assert.Equal(t, []time.Duration{DefaultDelay, DefaultDelay, DefaultDelay, DefaultDelay}, *slept)
}

func TestFetchAll_PreservesPageOrder(t *testing.T) {
	p, _ := newTestPaginator(Config{PageSize: 2})
	var calls []int

	records, err := p.FetchAll(context.Background(), "/test", pagesOfSizes([]int{2, 2, 1}, &calls))
	require.NoError(t, err)

	assert.Equal(t, []int{1000, 1001, 2000, 2001, 3000}, records)
}

func TestFetchAll_ShortPageDoesNotStop(t *testing.T) {
	p, _ := newTestPaginator(Config{PageSize: 50})
	var calls []int

	// A short page in the middle must not end iteration
	records, err := p.FetchAll(context.Background(), "/test", pagesOfSizes([]int{10, 50, 5}, &calls))
	require.NoError(t, err)

	assert.Len(t, records, 65)
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
}

func TestFetchAll_EmptyCollection(t *testing.T) {
	p, slept := newTestPaginator(DefaultConfig())
	var calls []int

	records, err := p.FetchAll(context.Background(), "/test", pagesOfSizes(nil, &calls))
	require.NoError(t, err)

	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Equal(t, []int{1}, calls)
	assert.Len(t, *slept, 1)
}

func TestFetchAll_PassesPageSize(t *testing.T) {
	p, _ := newTestPaginator(Config{PageSize: 25})

	var sizes []int
	_, err := p.FetchAll(context.Background(), "/test", func(ctx context.Context, page, perPage int) ([]int, error) {
		sizes = append(sizes, perPage)
		if page < 3 {
			return []int{page}, nil
		}
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{25, 25, 25}, sizes)
}

func TestFetchAll_FetchErrorPropagates(t *testing.T) {
	p, _ := newTestPaginator(DefaultConfig())
	transportErr := errors.New("connection reset")
	calls := 0

	records, err := p.FetchAll(context.Background(), "/test", func(ctx context.Context, page, perPage int) ([]int, error) {
		calls++
		if page == 3 {
			return nil, transportErr
		}
		return []int{1, 2, 3}, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	assert.Contains(t, err.Error(), "page 3")
	assert.Nil(t, records, "no partial result on fetch failure")
	assert.Equal(t, 3, calls, "no retry")
}

func TestFetchAll_CancelledBetweenPages(t *testing.T) {
	p, _ := newTestPaginator(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, err := p.FetchAll(ctx, "/test", func(ctx context.Context, page, perPage int) ([]int, error) {
		if page == 2 {
			cancel()
		}
		return []int{page}, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	// Pages fetched before cancellation are kept for the caller to decide
	assert.Equal(t, []int{1, 2}, records)
}

func TestFetchAll_CancelAfterEmptyPageKeepsCollection(t *testing.T) {
	p, slept := newTestPaginator(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, err := p.FetchAll(ctx, "/test", func(ctx context.Context, page, perPage int) ([]int, error) {
		if page == 2 {
			cancel()
			return nil, nil
		}
		return []int{page}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1}, records)
	assert.Len(t, *slept, 2, "the wait after the empty page is still attempted")
}

func TestFetchAll_RealDelay(t *testing.T) {
	p := New[int](Config{PageSize: 1, Delay: 20 * time.Millisecond}, zerolog.Nop())
	var calls []int

	start := time.Now()
	_, err := p.FetchAll(context.Background(), "/test", pagesOfSizes([]int{1, 1}, &calls))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestNew_Defaults(t *testing.T) {
	p := New[int](Config{PageSize: 0, Delay: -time.Second}, zerolog.Nop())

	assert.Equal(t, DefaultPageSize, p.Config().PageSize)
	assert.Equal(t, time.Duration(0), p.Config().Delay)
}
