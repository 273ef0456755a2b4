package dns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/firefart/dmarcviewer/internal/dmarc"
	mdns "github.com/miekg/dns"
)

var (
	ErrNotFound = errors.New("dns: no such record")
	ErrServFail = errors.New("dns: server failure")
	ErrRefused  = errors.New("dns: query refused")
	ErrInvalid  = errors.New("dns: invalid answer")
)

// TXTQuerier returns the TXT strings published for a name.
type TXTQuerier interface {
	QueryTXT(ctx context.Context, name string) ([]string, error)
}

// Client sends TXT queries to a list of nameservers.
type Client struct {
	servers []string
	client  *mdns.Client
}

// NewClient creates a client for the given nameserver ("host:port"). With
// an empty server the servers from /etc/resolv.conf are used.
func NewClient(server string, timeout time.Duration) *Client {
	servers := []string{server}
	if server == "" {
		servers = systemNameservers()
	}
	return &Client{
		servers: servers,
		client: &mdns.Client{
			Timeout: timeout,
		},
	}
}

func systemNameservers() []string {
	config, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(config.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	servers := make([]string, 0, len(config.Servers))
	for _, s := range config.Servers {
		servers = append(servers, netJoin(s, config.Port))
	}
	return servers
}

func netJoin(host, port string) string {
	if port == "" {
		port = "53"
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + port
	}
	return host + ":" + port
}

func (c *Client) QueryTXT(ctx context.Context, name string) ([]string, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), mdns.TypeTXT)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range c.servers {
		resp, _, err := c.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = fmt.Errorf("could not query %s: %w", server, err)
			continue
		}
		switch resp.Rcode {
		case mdns.RcodeSuccess:
		case mdns.RcodeNameError:
			return nil, ErrNotFound
		case mdns.RcodeRefused:
			lastErr = ErrRefused
			continue
		default:
			lastErr = ErrServFail
			continue
		}

		var records []string
		for _, rr := range resp.Answer {
			if txt, ok := rr.(*mdns.TXT); ok {
				records = append(records, strings.Join(txt.Txt, ""))
			}
		}
		if len(records) == 0 {
			return nil, ErrNotFound
		}
		return records, nil
	}
	if lastErr == nil {
		lastErr = ErrServFail
	}
	return nil, lastErr
}

// CymruResolver maps IP addresses to the name of their origin AS with the
// Team Cymru IP to ASN DNS service.
// https://www.team-cymru.com/ip-asn-mapping
type CymruResolver struct {
	querier TXTQuerier
	timeout time.Duration
	cache   *cache[dmarc.Organization]
	logger  *slog.Logger
}

func NewCymruResolver(querier TXTQuerier, timeout, cacheTimeout time.Duration, logger *slog.Logger) *CymruResolver {
	return &CymruResolver{
		querier: querier,
		timeout: timeout,
		cache:   newCache[dmarc.Organization](cacheTimeout),
		logger:  logger,
	}
}

// originName returns the Cymru origin zone name for addr, e.g.
// 1.2.0.192.origin.asn.cymru.com. for 192.0.2.1.
func originName(addr netip.Addr) (string, error) {
	addr = addr.Unmap()
	arpa, err := mdns.ReverseAddr(addr.String())
	if err != nil {
		return "", err
	}
	if addr.Is4() {
		return strings.TrimSuffix(arpa, "in-addr.arpa.") + "origin.asn.cymru.com.", nil
	}
	return strings.TrimSuffix(arpa, "ip6.arpa.") + "origin6.asn.cymru.com.", nil
}

func txtFields(txt string) []string {
	fields := strings.Split(txt, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// parseOrigin extracts the AS number from an origin answer like
// "13335 | 1.1.1.0/24 | AU | apnic | 2011-08-11". Addresses announced by
// several AS list them space separated, the first one is used.
func parseOrigin(txt string) (string, error) {
	asns := strings.Fields(txtFields(txt)[0])
	if len(asns) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalid, txt)
	}
	for _, r := range asns[0] {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalid, txt)
		}
	}
	return asns[0], nil
}

// parseASName extracts the AS name from an answer like
// "13335 | US | arin | 2010-07-14 | CLOUDFLARENET, US".
func parseASName(txt string) (string, error) {
	fields := txtFields(txt)
	if len(fields) < 5 || fields[4] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalid, txt)
	}
	return fields[4], nil
}

func (r *CymruResolver) LookupOrganization(ctx context.Context, addr netip.Addr) (dmarc.Organization, error) {
	key := addr.String()
	if entry, ok := r.cache.get(key); ok {
		return entry.value, entry.err
	}
	org, err := r.lookup(ctx, addr)
	// store failures as well so we do not reresolve the ip
	r.cache.put(key, org, err)
	return org, err
}

func (r *CymruResolver) lookup(ctx context.Context, addr netip.Addr) (dmarc.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name, err := originName(addr)
	if err != nil {
		return dmarc.Organization{}, err
	}
	r.logger.Debug("resolving origin", "ip", addr.String(), "name", name)

	records, err := r.querier.QueryTXT(ctx, name)
	if err != nil {
		return dmarc.Organization{}, fmt.Errorf("could not resolve origin of %s: %w", addr, err)
	}
	if len(records) == 0 {
		return dmarc.Organization{}, fmt.Errorf("could not resolve origin of %s: %w", addr, ErrNotFound)
	}
	asn, err := parseOrigin(records[0])
	if err != nil {
		return dmarc.Organization{}, err
	}

	records, err = r.querier.QueryTXT(ctx, "AS"+asn+".asn.cymru.com.")
	if err != nil {
		return dmarc.Organization{}, fmt.Errorf("could not resolve AS%s: %w", asn, err)
	}
	if len(records) == 0 {
		return dmarc.Organization{}, fmt.Errorf("could not resolve AS%s: %w", asn, ErrNotFound)
	}
	asName, err := parseASName(records[0])
	if err != nil {
		return dmarc.Organization{}, err
	}
	return dmarc.Organization{Name: asName}, nil
}
