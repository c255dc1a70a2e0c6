package webdrill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeLauncher) {
	t.Helper()
	l := &fakeLauncher{}
	s, err := New(context.Background(), l, "alice", "https://app.example", "https://svc.example", opts...)
	require.NoError(t, err)
	return s, l
}

func TestNewAppliesViewportAndAttachesBuffers(t *testing.T) {
	s, l := newTestSession(t, WithViewport(1024, 768))
	page := l.pages[0]

	assert.Equal(t, 1024, page.width)
	assert.Equal(t, 768, page.height)
	assert.Equal(t, "alice", s.Identity)
	assert.Equal(t, "https://app.example", s.AppURL)
	assert.Equal(t, "https://svc.example", s.ServiceURL)

	// Buffers are live from construction.
	page.console.Fire(ConsoleMessage{Time: time.Now(), Kind: "log", Text: "booted"})
	require.NoError(t, s.ConsoleLog().Drain(context.Background()))
	assert.Contains(t, s.ConsoleLog().Contents(), "booted")
}

func TestNewAppliesCPUThrottle(t *testing.T) {
	_, l := newTestSession(t, WithCPUThrottle(4.0))
	assert.Equal(t, 4.0, l.pages[0].throttle)
}

func TestNewSkipsThrottleAtFactorOne(t *testing.T) {
	_, l := newTestSession(t)
	assert.Equal(t, 0.0, l.pages[0].throttle, "SetCPUThrottle must not be called for factor 1.0")
}

func TestNewLaunchFailureIsFatal(t *testing.T) {
	l := &fakeLauncher{launchEr: errors.New("no executable")}
	_, err := New(context.Background(), l, "alice", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no executable")
}

func TestNewThrottleFailureClosesBrowser(t *testing.T) {
	l := &fakeLauncher{throttEr: errors.New("protocol error")}
	_, err := New(context.Background(), l, "alice", "", "", WithCPUThrottle(2.0))
	require.Error(t, err)
	require.Len(t, l.browsers, 1)
	assert.Equal(t, 1, l.browsers[0].Closed())
}

func TestQueryFindsElementThatAppearsLater(t *testing.T) {
	s, l := newTestSession(t)
	page := l.pages[0]

	go func() {
		time.Sleep(80 * time.Millisecond)
		page.show(".composer")
	}()

	el, err := s.Query(context.Background(), ".composer", Within(2*time.Second), Every(20*time.Millisecond))
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestQueryTimesOutAtItsBound(t *testing.T) {
	s, _ := newTestSession(t)

	start := time.Now()
	_, err := s.Query(context.Background(), ".missing", Within(500*time.Millisecond), Every(50*time.Millisecond))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), ".missing")
	// Not immediate, not indefinite.
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestQueryHiddenElement(t *testing.T) {
	s, l := newTestSession(t)
	l.pages[0].showHidden(".banner")

	_, err := s.Query(context.Background(), ".banner", Within(200*time.Millisecond), Every(20*time.Millisecond))
	assert.ErrorIs(t, err, ErrNotFound)

	el, err := s.Query(context.Background(), ".banner", Within(time.Second), Every(20*time.Millisecond), AllowHidden())
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestQueryAllEmptyAfterWaitIsNotAnError(t *testing.T) {
	s, _ := newTestSession(t)

	els, err := s.QueryAll(context.Background(), ".message", Within(300*time.Millisecond), Every(50*time.Millisecond))
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestQueryAllReturnsCurrentMatches(t *testing.T) {
	s, l := newTestSession(t)
	l.pages[0].show(".message")
	l.pages[0].showHidden(".message-hidden")

	els, err := s.QueryAll(context.Background(), ".message", Within(time.Second), Every(20*time.Millisecond))
	require.NoError(t, err)
	assert.Len(t, els, 1)
}

func TestReplaceInputTextSequence(t *testing.T) {
	s, _ := newTestSession(t)
	input := &fakeElement{}

	start := time.Now()
	require.NoError(t, s.ReplaceInputText(context.Background(), input, "hello"))

	assert.Equal(t, []string{"triple-click", "press:Backspace", "type:hello"}, input.Ops())
	// The fixed settle delay sits between select and delete.
	assert.GreaterOrEqual(t, time.Since(start), settleDelay)
}

func TestWaitNoSpinner(t *testing.T) {
	s, l := newTestSession(t)
	page := l.pages[0]
	page.show(".mx_Spinner")

	go func() {
		time.Sleep(80 * time.Millisecond)
		page.hide(".mx_Spinner")
	}()

	err := s.WaitNoSpinner(context.Background(), Within(2*time.Second), Every(20*time.Millisecond))
	assert.NoError(t, err)
}

func TestWaitForTimeoutCarriesDescription(t *testing.T) {
	s, _ := newTestSession(t)

	err := s.WaitFor(context.Background(), Visible(".never"), Within(200*time.Millisecond), Every(50*time.Millisecond))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `element ".never" to be visible`)
	assert.Contains(t, err.Error(), "timed out after")
}

func TestSessionPollDelegatesWithDefaults(t *testing.T) {
	s, _ := newTestSession(t, WithPollInterval(20*time.Millisecond), WithTimeout(time.Second))

	calls := 0
	ok := s.Poll(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls >= 2, nil
	})
	assert.True(t, ok)
	assert.Equal(t, 2, calls)
}

func TestCloseIsSingleUse(t *testing.T) {
	s, l := newTestSession(t)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, l.browsers[0].Closed())

	assert.ErrorIs(t, s.Close(context.Background()), ErrClosed)
	assert.Equal(t, 1, l.browsers[0].Closed(), "second Close must not touch the process")
}

func TestOperationsAfterCloseAreRejected(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.Close(context.Background()))

	ctx := context.Background()
	_, err := s.Query(ctx, ".x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.QueryAll(ctx, ".x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Navigate(ctx, "https://x/"), ErrClosed)
	assert.ErrorIs(t, s.WaitFor(ctx, Visible(".x")), ErrClosed)
	assert.ErrorIs(t, s.ReplaceInputText(ctx, &fakeElement{}, "x"), ErrClosed)
}
