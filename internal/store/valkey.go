package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

const defaultValkeyTimeout = 2 * time.Second

// Valkey keeps the blob on a Valkey (or Redis-compatible) server under
// "timedeck:<installation>:<key>", so installations can share one server.
type Valkey struct {
	client  valkey.Client
	prefix  string
	key     string
	timeout time.Duration
	logger  *slog.Logger
}

// ValkeyOptions turns addr into client options. Addresses containing "://"
// are parsed as URLs (redis://, rediss://, unix://); anything else is a
// host:port.
func ValkeyOptions(addr string) (valkey.ClientOption, error) {
	if addr == "" {
		return valkey.ClientOption{}, fmt.Errorf("valkey address is empty")
	}
	if strings.Contains(addr, "://") {
		opt, err := valkey.ParseURL(addr)
		if err != nil {
			return valkey.ClientOption{}, fmt.Errorf("parsing valkey url: %w", err)
		}
		return opt, nil
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// DialValkey connects to addr and pings it.
func DialValkey(ctx context.Context, addr string) (valkey.Client, error) {
	opt, err := ValkeyOptions(addr)
	if err != nil {
		return nil, err
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("connecting to valkey %s: %w", addr, err)
	}
	ctx, cancel := context.WithTimeout(ctx, defaultValkeyTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging valkey %s: %w", addr, err)
	}
	return client, nil
}

// NewValkey returns the adapter for key under installation's namespace.
func NewValkey(client valkey.Client, installation, key string, logger *slog.Logger) *Valkey {
	if logger == nil {
		logger = slog.Default()
	}
	if installation == "" {
		installation = "default"
	}
	return &Valkey{
		client:  client,
		prefix:  "timedeck:" + installation,
		key:     key,
		timeout: defaultValkeyTimeout,
		logger:  logger,
	}
}

// Key returns the full server key the blob lives under.
func (v *Valkey) Key() string { return v.fullKey(v.key) }

func (v *Valkey) fullKey(k string) string {
	return v.prefix + ":" + k
}

// Read returns the stored blob.
func (v *Valkey) Read(ctx context.Context) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	payload, err := v.client.Do(ctx, v.client.B().Get().Key(v.Key()).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", v.Key(), err)
	}
	return payload, true, nil
}

// Write replaces the stored blob.
func (v *Valkey) Write(ctx context.Context, blob string) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if err := v.client.Do(ctx, v.client.B().Set().Key(v.Key()).Value(blob).Build()).Error(); err != nil {
		return fmt.Errorf("writing %s: %w", v.Key(), err)
	}
	return nil
}

// Remove deletes the stored blob.
func (v *Valkey) Remove(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if err := v.client.Do(ctx, v.client.B().Del().Key(v.Key()).Build()).Error(); err != nil {
		return fmt.Errorf("removing %s: %w", v.Key(), err)
	}
	return nil
}

// Probe writes and deletes ProbeKey in the installation namespace.
func (v *Valkey) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	probe := v.fullKey(ProbeKey)
	if err := v.client.Do(ctx, v.client.B().Set().Key(probe).Value(ProbeKey).Build()).Error(); err != nil {
		v.logger.Warn("valkey probe write failed", "key", probe, "error", err)
		return false
	}
	if err := v.client.Do(ctx, v.client.B().Del().Key(probe).Build()).Error(); err != nil {
		v.logger.Warn("valkey probe cleanup failed", "key", probe, "error", err)
		return false
	}
	return true
}

// Close releases the client.
func (v *Valkey) Close() {
	v.client.Close()
}
