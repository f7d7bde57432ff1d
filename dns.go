package cbanalytics

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"

	"github.com/couchbase/gocbanalytics/cbaerr"
)

// errDNSRecordsExhausted is the sentinel error raised when every resolved
// address for a query has already been tried. It is not retriable: the
// pool wraps it in an Analytics error, which the classifier does not
// recognize and so fails through its catch-all row.
var errDNSRecordsExhausted = fmt.Errorf("dns rotation pool exhausted")

// dnsPool hands out one fresh address per attempt of a single logical
// query, resolving the hostname once and never handing back an address
// already marked used. It is created fresh per query and discarded
// afterward — unlike the shared HTTP transport, it carries no state worth
// keeping across queries.
type dnsPool struct {
	mu       sync.Mutex
	hostname string
	port     string
	records  map[string]bool // address -> used
	resolved bool
	resolver *net.Resolver
	logger   Logger
	recorder Recorder
}

func newDNSPool(hostname, port string, resolver *net.Resolver, logger Logger, recorder Recorder) *dnsPool {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if logger == nil {
		logger = noopLogger{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &dnsPool{hostname: hostname, port: port, resolver: resolver, logger: logger, recorder: recorder}
}

// resolve performs one hostname lookup and returns the full set of
// resolved host:port addresses. A lookup failure is reported as a
// retriable connection error; it bypasses the deny-list, which would mark
// a DNS failure raised while dialing as non-retriable.
func (p *dnsPool) resolve(ctx context.Context) ([]string, error) {
	ips, err := p.resolver.LookupIPAddr(ctx, p.hostname)
	if err != nil {
		p.logger.Warnf("resolving %q failed: %v", p.hostname, err)
		return nil, &connectionError{cause: err, retriable: true}
	}
	if len(ips) == 0 {
		return nil, &connectionError{cause: fmt.Errorf("no addresses found for host %q", p.hostname), retriable: true}
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.JoinHostPort(ip.IP.String(), p.port))
	}
	return addrs, nil
}

// maybeUpdateAndGet resolves the hostname lazily on first use, then
// returns a uniformly random unused address. Every call within the same
// logical query after the first reuses the cached record set.
func (p *dnsPool) maybeUpdateAndGet(ctx context.Context) (string, error) {
	p.mu.Lock()
	if !p.resolved {
		p.mu.Unlock()
		addrs, err := p.resolve(ctx)
		if err != nil {
			return "", err
		}
		p.mu.Lock()
		if !p.resolved {
			p.records = make(map[string]bool, len(addrs))
			for _, a := range addrs {
				p.records[a] = false
			}
			p.resolved = true
		}
	}
	defer p.mu.Unlock()

	return p.getRandomLocked()
}

func (p *dnsPool) getRandomLocked() (string, error) {
	var available []string
	for addr, used := range p.records {
		if !used {
			available = append(available, addr)
		}
	}
	if len(available) == 0 {
		p.logger.Warnf("every resolved address for %q has been tried", p.hostname)
		p.recorder.RecordDNSPoolExhausted()
		return "", cbaerr.NewWithCause(cbaerr.Analytics, errDNSRecordsExhausted, "no unused DNS records remain for host %q", p.hostname)
	}
	return available[rand.Intn(len(available))], nil
}

// markUsed marks addr as used so future calls to maybeUpdateAndGet never
// return it again for this query. Marking an address this pool never
// resolved is a no-op; callers that need visibility into that case should
// check the returned bool.
func (p *dnsPool) markUsed(addr string) (marked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[addr]; !ok {
		p.logger.Warnf("address %q was never resolved by this pool, ignoring", addr)
		return false
	}
	p.records[addr] = true
	return true
}

// availableRecords returns every address not yet marked used. Exposed for
// tests exercising the exhaustion invariant directly.
func (p *dnsPool) availableRecords() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for addr, used := range p.records {
		if !used {
			out = append(out, addr)
		}
	}
	return out
}
