package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/access"
	"github.com/coursepalette/coursepalette/core/user"
)

// UserGetter loads the user a token was issued to.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type Options struct {
	// Wait is how long Resolve blocks on an in-flight lookup before reporting a loading session.
	Wait time.Duration
	// Timeout bounds a single user lookup; a lookup that times out resolves unauthenticated.
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
}

func OptionsFromConfig(conf core.SessionConfig) Options {
	return Options{
		Wait:      conf.ResolveWait,
		Timeout:   conf.ResolveTimeout,
		CacheTTL:  conf.CacheTTL,
		CacheSize: conf.CacheSize,
	}
}

// Provider turns credentials into access.Session snapshots.
//
// A session is either resolved within Options.Wait or reported as loading while its lookup
// carries on in the background; every lookup ends resolved, authenticated or not.
type Provider struct {
	signer *Signer
	users  UserGetter
	logger core.Logger
	opts   Options

	group singleflight.Group
	cache *expirable.LRU[string, cachedSession]

	// generations of each user id; bumped on invalidation so lookups started before it
	// neither get cached nor shared with later callers
	mu   sync.Mutex
	gens map[string]uint64
}

type cachedSession struct {
	session access.Session
	userID  string
}

func NewProvider(signer *Signer, users UserGetter, logger core.Logger, opts Options) *Provider {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Provider{
		signer: signer,
		users:  users,
		logger: logger,
		opts:   opts,
		cache:  expirable.NewLRU[string, cachedSession](opts.CacheSize, nil, opts.CacheTTL),
		gens:   make(map[string]uint64),
	}
}

// Resolve returns the session of the visitor presenting token.
// An empty, malformed or expired token resolves to an anonymous session right away.
func (p *Provider) Resolve(ctx context.Context, token string) access.Session {
	if token == "" {
		return access.AnonymousSession()
	}
	claims, err := p.signer.ParseToken(token)
	if err != nil {
		return access.AnonymousSession()
	}
	if c, ok := p.cache.Get(token); ok {
		return c.session
	}

	gen := p.generation(claims.Subject)
	ch := p.group.DoChan(fmt.Sprintf("%s#%d", token, gen), func() (interface{}, error) {
		// detached from ctx: the lookup outlives a request that stopped waiting
		lookupCtx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
		defer cancel()
		return p.lookup(lookupCtx, token, claims, gen), nil
	})

	if p.opts.Wait <= 0 {
		select {
		case res := <-ch:
			return res.Val.(access.Session)
		default:
			return access.LoadingSession()
		}
	}

	timer := time.NewTimer(p.opts.Wait)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Val.(access.Session)
	case <-timer.C:
		return access.LoadingSession()
	case <-ctx.Done():
		return access.LoadingSession()
	}
}

func (p *Provider) lookup(ctx context.Context, token string, claims *Claims, gen uint64) access.Session {
	s := access.AnonymousSession()
	usr, err := p.users.GetByID(ctx, claims.Subject)
	switch {
	case err != nil:
		if errors.Cause(err) != user.ErrNotFound {
			p.logger.Error(fmt.Sprintf("session.Provider: resolving user %s: %v", claims.Subject, err), err)
		}
		// failures are cached as well, or a stuck store would keep every retry loading
	case usr.IsActive:
		s = access.AuthenticatedSession(usr.Principal())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gens[claims.Subject] == gen {
		p.cache.Add(token, cachedSession{session: s, userID: claims.Subject})
	}
	return s
}

func (p *Provider) generation(userID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gens[userID]
}

// Invalidate drops what is known about token (logout).
func (p *Provider) Invalidate(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.cache.Peek(token); ok {
		p.gens[c.userID]++
	} else if claims, err := p.signer.ParseToken(token); err == nil {
		p.gens[claims.Subject]++
	}
	p.cache.Remove(token)
}

// InvalidateUser drops the cached sessions of user id, whatever they resolved to
// (activation changes, role changes, password change).
func (p *Provider) InvalidateUser(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gens[id]++
	for _, token := range p.cache.Keys() {
		if c, ok := p.cache.Peek(token); ok && c.userID == id {
			p.cache.Remove(token)
		}
	}
}
