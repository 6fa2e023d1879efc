package server

import (
	"container/list"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table. The least recently seen
// client is forgotten first and starts again with a full bucket.
const maxTrackedClients = 10000

// clientLimiter gives every client address its own token bucket
type clientLimiter struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	maxClients int
	order      *list.List // Least recently seen at the front
	clients    map[string]*list.Element
}

type clientBucket struct {
	key     string
	limiter *rate.Limiter
}

func newClientLimiter(rps float64, burst, maxClients int) *clientLimiter {
	return &clientLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		maxClients: maxClients,
		order:      list.New(),
		clients:    make(map[string]*list.Element),
	}
}

// Allow reports whether the client behind r may make a request now
func (l *clientLimiter) Allow(r *http.Request) bool {
	return l.bucket(clientKey(r)).Allow()
}

func (l *clientLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.clients[key]; ok {
		l.order.MoveToBack(elem)
		return elem.Value.(*clientBucket).limiter
	}

	b := &clientBucket{key: key, limiter: rate.NewLimiter(l.limit, l.burst)}
	l.clients[key] = l.order.PushBack(b)
	for l.order.Len() > l.maxClients {
		oldest := l.order.Front()
		l.order.Remove(oldest)
		delete(l.clients, oldest.Value.(*clientBucket).key)
	}
	return b.limiter
}

func (l *clientLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// clientKey is the remote IP. Forwarding headers are not trusted.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
