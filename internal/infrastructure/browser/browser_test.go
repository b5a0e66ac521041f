package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
	"go.uber.org/zap"
)

// fakeDriver implements the handful of WebDriver calls the session uses.
type fakeDriver struct {
	selenium.WebDriver
	pageLoad time.Duration
	implicit time.Duration
	visited  []string
	source   string
	quits    int
	findErr  error
}

func (f *fakeDriver) SetPageLoadTimeout(d time.Duration) error    { f.pageLoad = d; return nil }
func (f *fakeDriver) SetImplicitWaitTimeout(d time.Duration) error { f.implicit = d; return nil }
func (f *fakeDriver) Get(url string) error                         { f.visited = append(f.visited, url); return nil }
func (f *fakeDriver) PageSource() (string, error)                  { return f.source, nil }
func (f *fakeDriver) Quit() error                                  { f.quits++; return nil }

func (f *fakeDriver) FindElement(by, value string) (selenium.WebElement, error) {
	return nil, f.findErr
}

func (f *fakeDriver) WaitWithTimeout(cond selenium.Condition, timeout time.Duration) error {
	ok, err := cond(f)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("timeout")
	}
	return nil
}

func TestAcquireConfiguresTimeouts(t *testing.T) {
	t.Parallel()

	drv := &fakeDriver{source: "<html></html>"}
	var hub string
	p := NewProvider(Options{HubURL: "http://grid:4444/wd/hub"}, func(caps selenium.Capabilities, url string) (selenium.WebDriver, error) {
		hub = url
		assert.Equal(t, "chrome", caps["browserName"])
		return drv, nil
	}, zap.NewNop())

	sess, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://grid:4444/wd/hub", hub)
	assert.Equal(t, 30*time.Second, drv.pageLoad)
	assert.Equal(t, 10*time.Second, drv.implicit)

	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "https://www.merx.com/"))
	require.NoError(t, sess.WaitFor(ctx, "div.row", time.Second))
	src, err := sess.PageSource(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", src)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, 1, drv.quits)
	assert.Equal(t, []string{"https://www.merx.com/"}, drv.visited)
}

func TestAcquireFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	p := NewProvider(Options{}, func(selenium.Capabilities, string) (selenium.WebDriver, error) {
		return nil, errors.New("connection refused")
	}, zap.NewNop())

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnavailable))
}

func TestWaitForTimesOut(t *testing.T) {
	t.Parallel()

	drv := &fakeDriver{findErr: errors.New("no such element")}
	p := NewProvider(Options{}, func(selenium.Capabilities, string) (selenium.WebDriver, error) {
		return drv, nil
	}, zap.NewNop())
	sess, err := p.Acquire(context.Background())
	require.NoError(t, err)

	err = sess.WaitFor(context.Background(), "table.results", time.Millisecond)
	require.Error(t, err)
}
