package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/booksync/internal/server/handlers"
)

// RateLimiter ограничивает частоту запросов по ключу (арендатор или IP) токен-бакетом
type RateLimiter struct {
	buckets  map[string]*bucket
	logger   *slog.Logger
	cleanupC chan struct{}
	stopOnce sync.Once
	rate     int
	window   time.Duration
	mu       sync.RWMutex
}

// bucket представляет bucket для конкретного ключа
type bucket struct {
	lastRefill time.Time
	tokens     int
	mu         sync.Mutex
}

// NewRateLimiter создает новый rate limiter
// rate - максимальное количество запросов за window
func NewRateLimiter(rate int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		window:   window,
		logger:   logger,
		cleanupC: make(chan struct{}),
	}

	// Запускаем периодическую очистку старых buckets
	go rl.cleanup()

	return rl
}

// cleanup периодически удаляет неактивные buckets для экономии памяти
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupOldBuckets()
		case <-rl.cleanupC:
			return
		}
	}
}

// cleanupOldBuckets удаляет buckets, которые не использовались дольше 2*window
func (rl *RateLimiter) cleanupOldBuckets() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastRefill) > rl.window*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// Stop останавливает cleanup goroutine. Повторный вызов безопасен.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanupC) })
}

func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()
	if exists {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, exists = rl.buckets[key]; exists {
		return b
	}
	b = &bucket{tokens: rl.rate, lastRefill: time.Now()}
	rl.buckets[key] = b
	return b
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	b := rl.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Sub(b.lastRefill) >= rl.window {
		b.tokens = rl.rate
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Middleware ограничивает запросы. Для аутентифицированных запросов ключом служит
// tenant_id, иначе IP клиента.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rateLimitKey(r)) {
			rejectRateLimited(w, r, rl.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PathRateLimit задает отдельный лимит для пути
type PathRateLimit struct {
	Path   string
	Rate   int
	Window time.Duration
}

// PathRateLimiter применяет разные лимиты для разных путей
type PathRateLimiter struct {
	limiters map[string]*RateLimiter
	fallback *RateLimiter
	logger   *slog.Logger
}

// NewPathRateLimiter создает limiter с кастомными лимитами для путей
func NewPathRateLimiter(limits []PathRateLimit, defaultRate int, defaultWindow time.Duration, logger *slog.Logger) *PathRateLimiter {
	p := &PathRateLimiter{
		limiters: make(map[string]*RateLimiter, len(limits)),
		fallback: NewRateLimiter(defaultRate, defaultWindow, logger),
		logger:   logger,
	}
	for _, limit := range limits {
		p.limiters[limit.Path] = NewRateLimiter(limit.Rate, limit.Window, logger)
	}
	return p
}

// Stop останавливает все limiters
func (p *PathRateLimiter) Stop() {
	for _, l := range p.limiters {
		l.Stop()
	}
	p.fallback.Stop()
}

// Middleware выбирает limiter по пути запроса
func (p *PathRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter, exists := p.limiters[r.URL.Path]
		if !exists {
			limiter = p.fallback
		}
		if !limiter.Allow(rateLimitKey(r)) {
			rejectRateLimited(w, r, p.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	logger.Warn("Rate limit exceeded",
		"key", rateLimitKey(r),
		"method", r.Method,
		"path", r.URL.Path,
	)
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// rateLimitKey возвращает ключ бакета: арендатор из токена или IP клиента
func rateLimitKey(r *http.Request) string {
	if tenantID, ok := handlers.GetTenantID(r.Context()); ok && tenantID != "" {
		return "tenant:" + tenantID
	}
	return "ip:" + getClientIP(r)
}

// getClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Берем первый IP из списка (реальный клиент)
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
