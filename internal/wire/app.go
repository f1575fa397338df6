package wire

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"

	"github.com/mithrel/serialbus/internal/bus"
	"github.com/mithrel/serialbus/internal/config"
	"github.com/mithrel/serialbus/internal/db"
	"github.com/mithrel/serialbus/internal/link"
	"github.com/mithrel/serialbus/pkg/api"
)

// App aggregates the major services for easy injection.
type App struct {
	Cfg      *viper.Viper
	Log      *log.Logger
	Link     link.Link
	Bus      *bus.Bus
	Recorder *db.Recorder
}

// BuildApp wires the link, bus, and optional recorder from the provided
// config. The caller owns the lifecycle: Bus.Start to ingest, App.Close to
// tear down.
func BuildApp(ctx context.Context, cfg *viper.Viper) (*App, error) {
	logger := log.New(os.Stderr, "serialbus ", log.LstdFlags)

	l, err := buildLink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []bus.Option{
		bus.WithLogger(logger),
		bus.WithPollInterval(cfg.GetDuration("poll_interval")),
	}

	var rec *db.Recorder
	if cfg.GetBool("record.enabled") {
		rec, err = db.Open(ctx, config.RecordDBPath(cfg))
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("open frame log: %w", err)
		}
		opts = append(opts, bus.WithObserver(func(f api.Frame) {
			if err := rec.Append(context.Background(), f); err != nil {
				logger.Printf("record frame: %v", err)
			}
		}))
	}

	return &App{
		Cfg:      cfg,
		Log:      logger,
		Link:     l,
		Bus:      bus.New(l, opts...),
		Recorder: rec,
	}, nil
}

// buildLink constructs the transport selected by link.mode.
func buildLink(ctx context.Context, cfg *viper.Viper, logger *log.Logger) (link.Link, error) {
	switch mode := cfg.GetString("link.mode"); mode {
	case "memory":
		return link.Loopback(), nil
	case "stream":
		dev := cfg.GetString("link.device")
		f, err := os.OpenFile(dev, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open link device %s: %w", dev, err)
		}
		return link.NewStream(f, logger), nil
	case "quic":
		addr := cfg.GetString("link.addr")
		if addr == "" {
			return nil, fmt.Errorf("link.addr is required for quic mode")
		}
		tlsConf, err := clientTLS(cfg)
		if err != nil {
			return nil, err
		}
		return link.DialQUIC(ctx, addr, tlsConf, logger)
	case "quic-listen":
		addr := cfg.GetString("link.addr")
		if addr == "" {
			return nil, fmt.Errorf("link.addr is required for quic-listen mode")
		}
		tlsConf, err := ServerTLS(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return link.AcceptQUIC(ctx, addr, tlsConf, logger)
	default:
		return nil, fmt.Errorf("unknown link.mode %q", mode)
	}
}

func clientTLS(cfg *viper.Viper) (*tls.Config, error) {
	if cfg.GetBool("link.insecure") {
		return link.InsecureClientTLS(), nil
	}
	if cert, key := cfg.GetString("tls.cert_file"), cfg.GetString("tls.key_file"); cert != "" || key != "" {
		return link.BuildFileTLS(cert, key)
	}
	return &tls.Config{}, nil
}

// ServerTLS resolves listener-side TLS: BYO PEM files, ACME via tls.domain,
// or an ephemeral self-signed certificate as the fallback.
func ServerTLS(ctx context.Context, cfg *viper.Viper) (*tls.Config, error) {
	if cert, key := cfg.GetString("tls.cert_file"), cfg.GetString("tls.key_file"); cert != "" || key != "" {
		return link.BuildFileTLS(cert, key)
	}
	if domain := cfg.GetString("tls.domain"); domain != "" {
		return link.BuildCertMagicTLS(ctx, domain, cfg.GetString("tls.email"), "")
	}
	return link.SelfSignedTLS()
}

// Close releases the link and the recorder. Stop the bus first.
func (a *App) Close() error {
	err := a.Link.Close()
	if a.Recorder != nil {
		if cerr := a.Recorder.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
