package dns

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/firefart/dmarcviewer/internal/dmarc"
)

// CachedDNSResolver annotates source IPs with their reverse DNS name.
type CachedDNSResolver struct {
	timeout  time.Duration
	resolver *net.Resolver
	cache    *cache[[]string]
	logger   *slog.Logger
}

func NewCachedDNSResolver(server string, connectTimeout, timeout time.Duration, cacheTimeout time.Duration, logger *slog.Logger) *CachedDNSResolver {
	resolver := net.DefaultResolver
	if server != "" {
		resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{
					Timeout: connectTimeout,
				}
				return d.DialContext(ctx, network, server)
			},
		}
	}
	return &CachedDNSResolver{
		timeout:  timeout,
		resolver: resolver,
		cache:    newCache[[]string](cacheTimeout),
		logger:   logger,
	}
}

// CachedDNSLookup performs a reverse lookup and caches the result.
func (r *CachedDNSResolver) CachedDNSLookup(ctx context.Context, ip string) ([]string, error) {
	if entry, ok := r.cache.get(ip); ok {
		return entry.value, entry.err
	}
	r.logger.Debug("resolving", "ip", ip)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	domains, err := r.resolver.LookupAddr(ctx, ip)
	if err != nil {
		// store the failure so we do not reresolve the ip
		r.cache.put(ip, nil, err)
		return nil, err
	}

	// remove trailing dot from domains
	for i := range domains {
		domains[i] = strings.TrimSuffix(domains[i], ".")
	}
	r.cache.put(ip, domains, nil)
	return domains, nil
}

// LookupOrganization uses the first PTR name of addr as its organization.
func (r *CachedDNSResolver) LookupOrganization(ctx context.Context, addr netip.Addr) (dmarc.Organization, error) {
	domains, err := r.CachedDNSLookup(ctx, addr.String())
	if err != nil {
		return dmarc.Organization{}, err
	}
	if len(domains) == 0 {
		return dmarc.Organization{}, errors.New("no ptr record found")
	}
	return dmarc.Organization{Name: domains[0]}, nil
}
