// Command fireboltgwd runs the on-device JSON-RPC gateway: it loads an
// extension manifest, boots the extn bus / plugin pool / gateway in order,
// and serves until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rdkcentral/ripple-core/internal/logging"
	"github.com/rdkcentral/ripple-core/pkg/bootstrap"
	"github.com/rdkcentral/ripple-core/pkg/config"
	"github.com/rdkcentral/ripple-core/pkg/pluginpool"
)

func main() {
	os.Exit(run())
}

func run() int {
	manifestPath := flag.String("config", "/etc/fireboltgw/manifest.yaml", "path to the extension manifest")
	devMode := flag.Bool("dev", false, "use human-readable colorized logging instead of JSON")
	flag.Parse()

	log := logging.Setup(logging.Options{Color: *devMode})

	manifest, err := config.Load(*manifestPath)
	if err != nil {
		log.Error("failed to load manifest", "error", err.Error())
		return bootstrap.ExitStepFailed
	}

	cfg := bootstrap.Config{
		ListenAddress: manifest.Listen.Address,
		ResourceCaps:  manifest.ResourceCaps,
		AuthSecret:    []byte(os.Getenv("FIREBOLTGW_AUTH_SECRET")),
		StoragePath:   manifest.Storage.Path,
		EnableBridge:  manifest.Bridge.Enabled,
		Advertise: bootstrap.AdvertiseConfig{
			Enabled:     manifest.Advertise.Enabled,
			ServiceName: manifest.Advertise.ServiceName,
			ServiceType: manifest.Advertise.ServiceType,
		},
	}
	if len(manifest.Extensions) > 0 {
		ext := manifest.Extensions[0]
		cfg.Plugin = bootstrap.PluginConfig{
			Size: ext.PoolSize,
			Dial: func(ctx context.Context, _ int) (pluginpool.Conn, error) {
				return pluginpool.DialWebSocket(ctx, ext.Address)
			},
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, code, err := bootstrap.Boot(ctx, cfg)
	if err != nil {
		log.Error("bootstrap failed", "error", err.Error())
		return code
	}
	defer st.Shutdown()

	log.Info(fmt.Sprintf("fireboltgwd listening on %s", cfg.ListenAddress))
	<-ctx.Done()
	log.Info("shutting down")
	return bootstrap.ExitOK
}
