package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rdkcentral/ripple-core/pkg/config"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
listen:
  address: ":9998"
resource_caps:
  cpu: 4
  io: 8
extensions:
  - name: thunder-device-info
    contracts: ["DeviceInfo", "Wifi"]
    pool_size: 3
    timeout: 5s
    address: "ws://127.0.0.1:9998/jsonrpc"
advertise:
  enabled: true
  service_name: fireboltgw
  service_type: _firebolt._tcp
storage:
  path: /var/lib/fireboltgw/store.json
bridge:
  enabled: true
`

func TestLoad_ParsesManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9998", m.Listen.Address)
	require.Equal(t, 4, m.ResourceCaps["cpu"])
	require.Len(t, m.Extensions, 1)
	require.Equal(t, "thunder-device-info", m.Extensions[0].Name)
	require.Equal(t, 3, m.Extensions[0].PoolSize)
	require.Equal(t, 5*time.Second, m.Extensions[0].Timeout.AsDuration())
	require.True(t, m.Advertise.Enabled)
	require.Equal(t, "/var/lib/fireboltgw/store.json", m.Storage.Path)
	require.True(t, m.Bridge.Enabled)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
