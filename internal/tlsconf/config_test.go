package tlsconf

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_AutoVersionLeavesMinAndMaxVersionZero(t *testing.T) {
	tc, err := Build(Config{ServerName: "example.com", Version: Auto})
	require.NoError(t, err)
	assert.EqualValues(t, 0, tc.MinVersion)
	assert.EqualValues(t, 0, tc.MaxVersion)
	assert.Equal(t, "example.com", tc.ServerName)
}

func TestBuild_ExplicitVersionsArePinned(t *testing.T) {
	cases := map[SSLVersion]uint16{
		TLS10: tls.VersionTLS10,
		TLS11: tls.VersionTLS11,
		TLS12: tls.VersionTLS12,
	}
	for version, want := range cases {
		tc, err := Build(Config{Version: version})
		require.NoError(t, err)
		assert.Equal(t, want, tc.MinVersion)
		assert.Equal(t, want, tc.MaxVersion, "-s must pin an exact version, not just a floor")
	}
}

func TestBuild_SSLv3Rejected(t *testing.T) {
	_, err := Build(Config{Version: SSLv3})
	assert.Error(t, err)
}

func TestBuild_UnknownVersionRejected(t *testing.T) {
	_, err := Build(Config{Version: SSLVersion(99)})
	assert.Error(t, err)
}

func TestBuild_SessionReuseInstallsCache(t *testing.T) {
	tc, err := Build(Config{SessionReuse: true})
	require.NoError(t, err)
	assert.NotNil(t, tc.ClientSessionCache)
}

func TestBuild_NoSessionReuseLeavesCacheNil(t *testing.T) {
	tc, err := Build(Config{SessionReuse: false})
	require.NoError(t, err)
	assert.Nil(t, tc.ClientSessionCache)
}
