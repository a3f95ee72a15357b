package middleware

import (
	"net/http"
	"strconv"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// DefaultPublicRate throttles the unauthenticated payment and signature
// endpoints.
const DefaultPublicRate = "30-M"

// RateLimiter limits requests per client IP. Counters live in process
// memory, so each replica enforces its own budget.
type RateLimiter struct {
	limiter *limiter.Limiter
	prefix  string
}

// NewRateLimiter parses a rate in limiter's "<count>-<S|M|H|D>" format,
// such as "30-M".
func NewRateLimiter(rate, prefix string) (*RateLimiter, error) {
	if rate == "" {
		rate = DefaultPublicRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		limiter: limiter.New(memory.NewStore(), parsed),
		prefix:  prefix,
	}, nil
}

// Middleware rejects clients over their budget with 429. Rate limit headers
// are set on every response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		lctx, err := rl.limiter.Get(r.Context(), rl.prefix+":"+ip)
		if err != nil {
			respondInternalError(w, r, err)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			GetLogger(r.Context()).Warn("rate limit exceeded",
				"ip", ip,
				"limit", lctx.Limit,
				"scope", rl.prefix,
			)
			respondTooManyRequests(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
