package deviceinfo_test

import (
	"testing"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
	"github.com/rdkcentral/ripple-core/pkg/deviceinfo"
	"github.com/stretchr/testify/require"
)

func TestRequest_ImplementsExtnPayloadProvider(t *testing.T) {
	req := deviceinfo.Request{Kind: deviceinfo.KindGetTimezone}
	require.Equal(t, contracts.DeviceInfoContract, req.Contract())
	payload := req.GetExtnPayload()
	require.True(t, payload.IsRequest())

	roundTripped, ok := contracts.GetFromPayload[deviceinfo.Request](payload)
	require.True(t, ok)
	require.Equal(t, deviceinfo.KindGetTimezone, roundTripped.Kind)
}

func TestParseTimestamp_AcceptsLooselyFormattedPlatformTimestamps(t *testing.T) {
	ts, err := deviceinfo.ParseTimestamp("2024-03-05 14:02:11")
	require.NoError(t, err)
	require.Equal(t, 2024, ts.Year())
	require.Equal(t, 5, ts.Day())
}
