// Package identity issues the anonymous client identifier that stands in for
// authentication.
package identity

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/localstore"
)

const suffixLen = 9

// Provider returns a stable identifier persisted in the local store.
type Provider struct {
	store  localstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewProvider creates a provider over store.
func NewProvider(store localstore.Store, logger *slog.Logger) *Provider {
	return &Provider{store: store, logger: logger, now: time.Now}
}

// GetOrCreate returns the persisted identifier, generating and storing one on
// first use. If the store fails, a fresh unpersisted identifier is returned;
// rate limiting and vote dedup then only hold for the current call.
func (p *Provider) GetOrCreate() string {
	id, ok, err := p.store.Get(localstore.KeyIdentity)
	if err != nil {
		p.degraded("read", err)
		return p.generate()
	}
	if ok && id != "" {
		return id
	}

	id = p.generate()
	if err := p.store.Set(localstore.KeyIdentity, id); err != nil {
		p.degraded("write", err)
	}
	return id
}

func (p *Provider) degraded(op string, err error) {
	p.logger.Warn("identity: storage unavailable, using ephemeral identifier",
		slog.String("op", op),
		slog.String("error", fmt.Errorf("%w: %w", apperr.ErrIdentityUnavailable, err).Error()))
}

// generate builds user_<unix-millis>_<random base36>.
func (p *Provider) generate() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[:8])
	suffix := strconv.FormatUint(n, 36)
	if len(suffix) < suffixLen {
		suffix = strings.Repeat("0", suffixLen-len(suffix)) + suffix
	}
	return fmt.Sprintf("user_%d_%s", p.now().UnixMilli(), suffix[len(suffix)-suffixLen:])
}
