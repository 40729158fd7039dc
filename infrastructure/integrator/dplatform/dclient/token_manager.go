package dclient

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	ddomain "github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform/domain"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/metrics"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

const authPath = "/data/v1/authentication"

// SessionCache guarda tokens de sessão fora do processo
type SessionCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type session struct {
	token     string
	expiresAt time.Time
}

// TokenManager troca o token de longa duração por tokens de sessão e os
// mantém até expirarem. Cada credencial tem seu próprio mutex, então contas
// com credenciais diferentes não esperam umas pelas outras.
type TokenManager struct {
	cfg        config.DPlatform
	HTTPClient utils.HTTPDoer
	cache      SessionCache
	metrics    *metrics.Metrics
	now        func() time.Time

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	sessions map[string]session
}

func NewTokenManager(cfg config.DPlatform, httpClient utils.HTTPDoer, cache SessionCache, m *metrics.Metrics) *TokenManager {
	return &TokenManager{
		cfg:        cfg,
		HTTPClient: httpClient,
		cache:      cache,
		metrics:    m,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
		sessions:   make(map[string]session),
	}
}

func (tm *TokenManager) lockFor(key string) *sync.Mutex {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	lock, ok := tm.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		tm.locks[key] = lock
	}
	return lock
}

// Token devolve um token de sessão válido para a credencial
func (tm *TokenManager) Token(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", domain.ErrCredentialMissing
	}

	key := sessionKey(credential)
	lock := tm.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	tm.mu.Lock()
	current, ok := tm.sessions[key]
	tm.mu.Unlock()
	if ok && tm.now().Before(current.expiresAt) {
		return current.token, nil
	}

	if tm.cache != nil {
		token, found, err := tm.cache.Get(ctx, key)
		if err != nil {
			logrus.WithError(err).Warn("dplatform: falha ao ler cache de sessão, seguindo com autenticação")
		} else if found {
			tm.store(key, token)
			return token, nil
		}
	}

	reason := "expired"
	if !ok {
		reason = "initial"
	}

	token, err := tm.exchange(ctx, credential)
	if err != nil {
		return "", err
	}
	if tm.metrics != nil {
		tm.metrics.RecordSessionRefresh(string(domain.PlatformD), reason)
	}

	tm.store(key, token)
	if tm.cache != nil {
		if err := tm.cache.Set(ctx, key, token, tm.cfg.SessionTTL); err != nil {
			logrus.WithError(err).Warn("dplatform: falha ao gravar cache de sessão")
		}
	}

	return token, nil
}

// Invalidate descarta o token de sessão rejeitado. Se outra goroutine já o
// renovou, o token novo é mantido.
func (tm *TokenManager) Invalidate(ctx context.Context, credential, stale string) {
	key := sessionKey(credential)
	lock := tm.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	tm.mu.Lock()
	current, ok := tm.sessions[key]
	if ok && current.token == stale {
		delete(tm.sessions, key)
	}
	tm.mu.Unlock()

	if tm.cache == nil {
		return
	}

	cached, found, err := tm.cache.Get(ctx, key)
	if err == nil && found && cached == stale {
		if err := tm.cache.Delete(ctx, key); err != nil {
			logrus.WithError(err).Warn("dplatform: falha ao remover sessão do cache")
		}
	}
}

func (tm *TokenManager) store(key, token string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.sessions[key] = session{
		token:     token,
		expiresAt: tm.now().Add(tm.cfg.SessionTTL),
	}
}

func (tm *TokenManager) exchange(ctx context.Context, credential string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.cfg.BaseURL+authPath, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("erro ao criar a requisição de autenticação: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(credential)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	started := time.Now()
	token, err := tm.doExchange(req)
	if tm.metrics != nil {
		tm.metrics.RecordUpstream(string(domain.PlatformD), "authentication", started, err)
	}
	if err != nil {
		logrus.WithError(err).Error("dplatform: falha na autenticação")
		return "", err
	}

	return token, nil
}

func (tm *TokenManager) doExchange(req *http.Request) (string, error) {
	status, body, err := utils.MakeRequest(tm.HTTPClient, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
	}

	switch {
	case utils.IsServerError(status):
		return "", fmt.Errorf("%w: autenticação retornou status %d", domain.ErrTransientNetwork, status)
	case status != http.StatusOK:
		return "", fmt.Errorf("%w: autenticação retornou status %d", domain.ErrAuth, status)
	}

	var response ddomain.AuthResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDataShape, err)
	}
	if response.AccessToken == "" {
		return "", fmt.Errorf("%w: resposta de autenticação sem access_token", domain.ErrAuth)
	}

	return response.AccessToken, nil
}

// sessionKey evita guardar a credencial em claro como chave
func sessionKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
