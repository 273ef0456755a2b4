package dns

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"testing"
	"time"
)

func TestGetCacheEntry(t *testing.T) {
	t.Parallel()

	// test expire
	logger := slog.New(slog.DiscardHandler)

	dns := NewCachedDNSResolver("8.8.8.8:53", 1*time.Second, 10*time.Second, 1*time.Microsecond, logger)
	dns.cache.put("1.1.1.1", []string{"asdf.com", "ghjkl.com"}, nil)
	time.Sleep(1 * time.Millisecond)
	if _, ok := dns.cache.get("1.1.1.1"); ok {
		t.Fatal("cache not expired")
	}

	dns = NewCachedDNSResolver("8.8.8.8:53", 1*time.Second, 10*time.Second, 1*time.Hour, logger)
	dns.cache.put("1.1.1.1", []string{"asdf.com", "ghjkl.com"}, nil)
	entry, ok := dns.cache.get("1.1.1.1")
	if !ok {
		t.Fatal("cache expired and should not be")
	}
	if len(entry.value) != 2 {
		t.Fatalf("wrong cache size returned: %d", len(entry.value))
	}
	if entry.value[0] != "asdf.com" || entry.value[1] != "ghjkl.com" {
		t.Fatalf("wrong domains returned, got %v", entry.value)
	}
}

func TestCachedLookupUsesCache(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	dns := NewCachedDNSResolver("", 1*time.Second, 10*time.Second, 1*time.Hour, logger)
	dns.cache.put("192.0.2.1", []string{"mail.example.com"}, nil)

	org, err := dns.LookupOrganization(context.Background(), netip.MustParseAddr("192.0.2.1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.Name != "mail.example.com" {
		t.Fatalf("got organization %q", org.Name)
	}

	dns.cache.put("192.0.2.2", nil, nil)
	if _, err := dns.LookupOrganization(context.Background(), netip.MustParseAddr("192.0.2.2")); err == nil {
		t.Fatal("expected error for empty ptr result")
	}
}

func TestOriginName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want string
	}{
		{"192.0.2.1", "1.2.0.192.origin.asn.cymru.com."},
		{"::ffff:192.0.2.1", "1.2.0.192.origin.asn.cymru.com."},
		{"2001:db8::1", "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.origin6.asn.cymru.com."},
	}
	for _, tt := range tests {
		got, err := originName(netip.MustParseAddr(tt.addr))
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.addr, err)
		}
		if got != tt.want {
			t.Errorf("originName(%s) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestParseCymruAnswers(t *testing.T) {
	t.Parallel()

	asn, err := parseOrigin("13335 | 1.1.1.0/24 | AU | apnic | 2011-08-11")
	if err != nil || asn != "13335" {
		t.Fatalf("parseOrigin() = %q, %v", asn, err)
	}
	asn, err = parseOrigin("15169 36040 | 8.8.8.0/24 | US | arin | 1992-12-01")
	if err != nil || asn != "15169" {
		t.Fatalf("parseOrigin() = %q, %v", asn, err)
	}
	for _, bad := range []string{"", " | 1.1.1.0/24", "NA | 1.1.1.0/24"} {
		if _, err := parseOrigin(bad); !errors.Is(err, ErrInvalid) {
			t.Errorf("parseOrigin(%q) error = %v", bad, err)
		}
	}

	name, err := parseASName("13335 | US | arin | 2010-07-14 | CLOUDFLARENET, US")
	if err != nil || name != "CLOUDFLARENET, US" {
		t.Fatalf("parseASName() = %q, %v", name, err)
	}
	for _, bad := range []string{"", "13335 | US", "13335 | US | arin | 2010-07-14 | "} {
		if _, err := parseASName(bad); !errors.Is(err, ErrInvalid) {
			t.Errorf("parseASName(%q) error = %v", bad, err)
		}
	}
}

type fakeQuerier struct {
	answers map[string][]string
	calls   int
}

func (f *fakeQuerier) QueryTXT(_ context.Context, name string) ([]string, error) {
	f.calls++
	records, ok := f.answers[name]
	if !ok {
		return nil, ErrNotFound
	}
	return records, nil
}

func TestCymruResolver(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{answers: map[string][]string{
		"1.2.0.192.origin.asn.cymru.com.": {"64500 | 192.0.2.0/24 | ZZ | test | 2020-01-01"},
		"AS64500.asn.cymru.com.":          {"64500 | ZZ | test | 2020-01-01 | EXAMPLE-NET, ZZ"},
	}}
	r := NewCymruResolver(q, time.Second, time.Hour, slog.New(slog.DiscardHandler))

	org, err := r.LookupOrganization(context.Background(), netip.MustParseAddr("192.0.2.1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.Name != "EXAMPLE-NET, ZZ" {
		t.Fatalf("got organization %q", org.Name)
	}
	if q.calls != 2 {
		t.Fatalf("expected 2 queries, got %d", q.calls)
	}

	// second lookup is served from the cache
	if _, err := r.LookupOrganization(context.Background(), netip.MustParseAddr("192.0.2.1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.calls != 2 {
		t.Fatalf("expected cached answer, got %d queries", q.calls)
	}

	// failures are cached too
	for range 2 {
		_, err := r.LookupOrganization(context.Background(), netip.MustParseAddr("198.51.100.1"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if q.calls != 3 {
		t.Fatalf("expected failure to be cached, got %d queries", q.calls)
	}
}

func TestCymruResolverEmptyAnswer(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{answers: map[string][]string{
		"1.2.0.192.origin.asn.cymru.com.": {},
		"2.2.0.192.origin.asn.cymru.com.": {"64501 | 192.0.2.0/24 | ZZ | test | 2020-01-01"},
		"AS64501.asn.cymru.com.":          nil,
	}}
	r := NewCymruResolver(q, time.Second, time.Hour, slog.New(slog.DiscardHandler))

	for _, ip := range []string{"192.0.2.1", "192.0.2.2"} {
		if _, err := r.LookupOrganization(context.Background(), netip.MustParseAddr(ip)); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found for %s, got %v", ip, err)
		}
	}
}

func TestNetJoin(t *testing.T) {
	t.Parallel()

	if got := netJoin("127.0.0.53", "53"); got != "127.0.0.53:53" {
		t.Fatalf("got %q", got)
	}
	if got := netJoin("::1", ""); got != "[::1]:53" {
		t.Fatalf("got %q", got)
	}
}
