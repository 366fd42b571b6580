package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferDeviceFromUserAgent(t *testing.T) {
	str := func(s string) *string { return &s }

	cases := []struct {
		ua   *string
		want Device
	}{
		{nil, DeviceUnknown},
		{str("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"), DeviceMobile},
		{str("Mozilla/5.0 (Linux; Android 14; Pixel 8)"), DeviceMobile},
		{str("Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)"), DeviceMobile},
		{str("SomeBrowser MOBILE"), DeviceMobile},
		{str("Mozilla/5.0 (Tablet; rv:68.0)"), DeviceTablet},
		{str("Mozilla/5.0 (Windows NT 10.0; Win64; x64)"), DeviceDesktop},
		{str(""), DeviceDesktop},
		{str("\x00\xff garbled"), DeviceDesktop},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, InferDeviceFromUserAgent(tc.ua))
	}
}

func TestInferDeviceEmptyIsUnknown(t *testing.T) {
	require.Equal(t, DeviceUnknown, InferDevice(""))
	require.Equal(t, DeviceDesktop, InferDevice("curl/8.0"))
}

func TestEscapeCell(t *testing.T) {
	require.Equal(t, "'=SUM(A1)", escapeCell("=SUM(A1)"))
	require.Equal(t, "'+1", escapeCell("+1"))
	require.Equal(t, "'-1", escapeCell("-1"))
	require.Equal(t, "'@cmd", escapeCell("@cmd"))
	require.Equal(t, "plain", escapeCell("plain"))
	require.Equal(t, "", escapeCell(""))
}
