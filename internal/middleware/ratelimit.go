package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Oniqq60/task_system_control/internal/respond"
)

// RateLimiter считает запросы клиента в фиксированном окне.
type RateLimiter struct {
	requests int
	window   time.Duration
	now      func() time.Time
	clientIP func(*http.Request) string

	mu        sync.Mutex
	clients   map[string]*clientWindow
	lastSweep time.Time
}

type clientWindow struct {
	count   int
	expires time.Time
}

// NewRateLimiter returns a disabled limiter when requests or window is not positive.
// A nil resolver keys clients by the connection address.
func NewRateLimiter(requests int, window time.Duration, resolver *ClientIPResolver) *RateLimiter {
	if requests <= 0 || window <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{
		requests: requests,
		window:   window,
		now:      time.Now,
		clientIP: resolver.ClientIP,
		clients:  make(map[string]*clientWindow),
	}
}

func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	if r == nil || r.requests == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.hit(r.clientIP(req)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(r.window.Seconds())))
			respond.ErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) hit(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	state, ok := r.clients[key]
	if !ok || now.After(state.expires) {
		r.clients[key] = &clientWindow{count: 1, expires: now.Add(r.window)}
		return false
	}
	if state.count >= r.requests {
		return true
	}
	state.count++
	return false
}

// sweep drops expired windows at most once per window. Caller holds mu.
func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.window {
		return
	}
	r.lastSweep = now
	for key, state := range r.clients {
		if now.After(state.expires) {
			delete(r.clients, key)
		}
	}
}

// ClientIPResolver определяет адрес клиента. Заголовки X-Forwarded-For и
// X-Real-IP учитываются только от доверенных прокси.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver accepts IPs and CIDRs of the proxies in front of the service.
func NewClientIPResolver(proxies []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			p = fmt.Sprintf("%s/%d", ip.String(), bits)
		}
		_, network, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		res.trusted = append(res.trusted, network)
	}
	return res, nil
}

func (c *ClientIPResolver) isTrusted(addr string) bool {
	if c == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, network := range c.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address unless the peer is a trusted proxy. Then
// X-Forwarded-For is walked from the right, skipping trusted hops.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	if r == nil {
		return "unknown"
	}
	peer := remoteHost(r.RemoteAddr)
	if !c.isTrusted(peer) {
		return peer
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" || net.ParseIP(hop) == nil {
				break
			}
			if !c.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
		return realIP
	}
	return peer
}

// ClientIP без доверенных прокси: всегда адрес соединения.
func ClientIP(r *http.Request) string {
	return (*ClientIPResolver)(nil).ClientIP(r)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
