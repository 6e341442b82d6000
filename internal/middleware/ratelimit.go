package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit allows limit requests per period for each client IP, refilling
// continuously. Idle clients are forgotten after a few periods.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || per <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	every := rate.Every(per / time.Duration(limit))
	idle := 3 * per

	var mu sync.Mutex
	visitors := make(map[string]*visitor)
	lastSweep := time.Now()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIPForRateLimit(r)
			now := time.Now()

			mu.Lock()
			if now.Sub(lastSweep) > idle {
				for key, v := range visitors {
					if now.Sub(v.lastSeen) > idle {
						delete(visitors, key)
					}
				}
				lastSweep = now
			}
			v, ok := visitors[ip]
			if !ok {
				v = &visitor{limiter: rate.NewLimiter(every, limit)}
				visitors[ip] = v
			}
			v.lastSeen = now
			reservation := v.limiter.ReserveN(now, 1)
			delay := reservation.DelayFrom(now)
			if delay > 0 {
				reservation.CancelAt(now)
			}
			mu.Unlock()

			if delay > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
