package remote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/remote"
	"github.com/roach88/offpos/internal/testutil"
)

var line = []model.SaleLine{{ProductID: "p1", Quantity: 1}}

func TestBreaker_OpensAfterConsecutiveUnavailable(t *testing.T) {
	fake := testutil.NewFakeAuthority(model.Product{ID: "p1", Name: "Coffee", PriceMinor: 100})
	b := remote.NewBreaker(fake, remote.BreakerSettings{Failures: 2, Cooldown: time.Hour, Logger: discard})
	ctx := context.Background()

	fake.SetOnline(false)
	for i := 0; i < 2; i++ {
		assert.True(t, model.IsRemoteUnavailable(b.SubmitSale(ctx, "s1", line)))
	}
	assert.Equal(t, "open", b.State())

	fake.SetOnline(true)
	calls := len(fake.SubmitCalls())
	err := b.SubmitSale(ctx, "s1", line)
	assert.True(t, model.IsRemoteUnavailable(err), "open circuit fails fast: %v", err)
	assert.Len(t, fake.SubmitCalls(), calls, "open circuit must not reach the authority")

	_, err = b.FetchCatalog(ctx)
	assert.True(t, model.IsRemoteUnavailable(err))

	assert.NoError(t, b.Ping(ctx), "ping bypasses the breaker")
}

func TestBreaker_RejectionDoesNotTrip(t *testing.T) {
	fake := testutil.NewFakeAuthority()
	fake.RejectAll("out of stock")
	b := remote.NewBreaker(fake, remote.BreakerSettings{Failures: 1, Cooldown: time.Hour, Logger: discard})

	for i := 0; i < 3; i++ {
		err := b.SubmitSale(context.Background(), "s1", line)
		assert.True(t, model.IsRemoteRejected(err), "got %v", err)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	fake := testutil.NewFakeAuthority(model.Product{ID: "p1", Name: "Coffee", PriceMinor: 100})
	b := remote.NewBreaker(fake, remote.BreakerSettings{Failures: 1, Cooldown: 20 * time.Millisecond, Logger: discard})
	ctx := context.Background()

	fake.FailNextSubmits(1)
	require.True(t, model.IsRemoteUnavailable(b.SubmitSale(ctx, "s1", line)))
	require.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, b.SubmitSale(ctx, "s1", line))
	assert.Equal(t, "closed", b.State())

	products, err := b.FetchCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	total, err := b.FetchTodayRevenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
}

// slowAuthority blocks until ctx is done and returns ctx.Err() unclassified.
type slowAuthority struct{ *testutil.FakeAuthority }

func (slowAuthority) SubmitSale(ctx context.Context, _ string, _ []model.SaleLine) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowAuthority) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWithTimeout_MapsDeadlineToUnavailable(t *testing.T) {
	a := remote.WithTimeout(slowAuthority{testutil.NewFakeAuthority()}, 10*time.Millisecond)

	start := time.Now()
	err := a.SubmitSale(context.Background(), "s1", line)
	assert.True(t, model.IsRemoteUnavailable(err), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, model.IsRemoteUnavailable(a.Ping(context.Background())))
}

func TestWithTimeout_ZeroIsPassthrough(t *testing.T) {
	fake := testutil.NewFakeAuthority()
	assert.Same(t, remote.Authority(fake), remote.WithTimeout(fake, 0))
}

func TestWithTimeout_KeepsClassifiedErrors(t *testing.T) {
	fake := testutil.NewFakeAuthority()
	fake.RejectAll("nope")
	a := remote.WithTimeout(fake, time.Second)
	assert.True(t, model.IsRemoteRejected(a.SubmitSale(context.Background(), "s1", line)))
}
