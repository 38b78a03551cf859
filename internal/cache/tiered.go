package cache

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Tiered reads through a fast local tier to a shared remote tier. Remote
// failures are logged and treated as misses.
type Tiered struct {
	local  Cache
	remote Cache
	logger *logrus.Logger
}

// NewTiered combines two caches. A nil remote makes Tiered behave like local.
func NewTiered(local, remote Cache, logger *logrus.Logger) *Tiered {
	return &Tiered{local: local, remote: remote, logger: logger}
}

// Get checks local first, then remote, promoting remote hits into local.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.local.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	if t.remote == nil {
		return nil, false, nil
	}

	v, ok, err := t.remote.Get(ctx, key)
	if err != nil {
		t.logger.WithError(err).WithField("key", key).Warn("Remote cache read failed")
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	if err := t.local.Set(ctx, key, v); err != nil {
		t.logger.WithError(err).Debug("Failed to promote remote cache hit")
	}
	return v, true, nil
}

// Set writes to both tiers. Only a local failure is returned.
func (t *Tiered) Set(ctx context.Context, key string, value []byte) error {
	if err := t.local.Set(ctx, key, value); err != nil {
		return err
	}
	if t.remote != nil {
		if err := t.remote.Set(ctx, key, value); err != nil {
			t.logger.WithError(err).WithField("key", key).Warn("Remote cache write failed")
		}
	}
	return nil
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	err := t.local.Delete(ctx, key)
	if t.remote != nil {
		err = errors.Join(err, t.remote.Delete(ctx, key))
	}
	return err
}

// Stats reports the local tier.
func (t *Tiered) Stats() Stats {
	return t.local.Stats()
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	err := t.local.Close()
	if t.remote != nil {
		err = errors.Join(err, t.remote.Close())
	}
	return err
}
