package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

func testAuthorization() domain.DeviceAuthorization {
	return domain.DeviceAuthorization{
		UserCode:                "WDJB-MJHT",
		VerificationURI:         "https://viewshot.example.com/device",
		VerificationURIComplete: "https://viewshot.example.com/device?user_code=WDJB-MJHT",
		ExpiresAt:               time.Now().Add(15 * time.Minute),
	}
}

func newTestPresenter(interactive bool) (*terminalPresenter, *bytes.Buffer, *[]string) {
	buf := new(bytes.Buffer)
	var opened []string
	p := newTerminalPresenter(buf)
	p.interactive = func() bool { return interactive }
	p.open = func(url string) error {
		opened = append(opened, url)
		return nil
	}
	return p, buf, &opened
}

func TestPresenter_ReturnsDevicePresenter(t *testing.T) {
	assert.Same(t, devicePresenter, Presenter())
}

func TestTerminalPresenter_PrintsCode(t *testing.T) {
	p, buf, opened := newTestPresenter(false)

	err := p.PresentVerification(context.Background(), testAuthorization())

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "visit: https://viewshot.example.com/device")
	assert.Contains(t, buf.String(), "enter the code: WDJB-MJHT")
	assert.Contains(t, buf.String(), "The code expires at")
	assert.Contains(t, buf.String(), "Waiting for approval...")
	assert.Empty(t, *opened)
}

func TestTerminalPresenter_OpensBrowser(t *testing.T) {
	p, buf, opened := newTestPresenter(true)

	require.NoError(t, p.PresentVerification(context.Background(), testAuthorization()))

	assert.Equal(t, []string{"https://viewshot.example.com/device?user_code=WDJB-MJHT"}, *opened)
	assert.Contains(t, buf.String(), "Opened the verification page")
}

func TestTerminalPresenter_BrowserDisabled(t *testing.T) {
	p, _, opened := newTestPresenter(true)
	p.setOpenBrowser(false)

	require.NoError(t, p.PresentVerification(context.Background(), testAuthorization()))

	assert.Empty(t, *opened)
}

func TestTerminalPresenter_BrowserFailureIgnored(t *testing.T) {
	p, buf, _ := newTestPresenter(true)
	p.open = func(string) error { return errors.New("no display") }

	err := p.PresentVerification(context.Background(), testAuthorization())

	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Opened the verification page")
	assert.Contains(t, buf.String(), "WDJB-MJHT")
}

func TestTerminalPresenter_Quiet(t *testing.T) {
	p, buf, opened := newTestPresenter(true)
	p.setQuiet(true)

	require.NoError(t, p.PresentVerification(context.Background(), testAuthorization()))

	assert.Empty(t, buf.String())
	assert.Empty(t, *opened)
}
