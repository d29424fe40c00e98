package server

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"

	"studentslife/pkg/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TLSModule = fx.Module("tls",
	fx.Provide(NewCertReloader),
)

// CertReloader serves the key pair at TLS.CERT_PATH/TLS.KEY_PATH and swaps it
// whenever either file changes on disk.
type CertReloader struct {
	mu       sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
}

// NewCertReloader returns nil when TLS is disabled.
func NewCertReloader(lc fx.Lifecycle, cfg *config.Config) (*CertReloader, error) {
	if !cfg.TLS.Enable {
		return nil, nil
	}

	r, err := LoadCertReloader(cfg.TLS.CertPath, cfg.TLS.KeyPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return r.Watch(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return r, nil
}

func LoadCertReloader(certPath, keyPath string) (*CertReloader, error) {
	r := &CertReloader{certPath: certPath, keyPath: keyPath}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CertReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

func (r *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cert == nil {
		return nil, errors.New("server: no TLS certificate loaded")
	}
	return r.cert, nil
}

func (r *CertReloader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// Watch reloads the pair on write, create or rename events until ctx ends.
// A failed reload keeps serving the previous certificate.
func (r *CertReloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, path := range []string{r.certPath, r.keyPath} {
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return err
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := r.reload(); err != nil {
					zap.L().Error("failed to reload TLS cert", zap.String("file", event.Name), zap.Error(err))
					continue
				}
				zap.L().Info("TLS certificate reloaded", zap.String("file", event.Name))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zap.L().Error("tls watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
