package router

import "testing"

func TestRouteTableLongestPrefixWins(t *testing.T) {
	tbl := NewRouteTable([]*Route{
		{Prefix: "/"},
		{Prefix: "/images"},
		{Prefix: "/images/thumbs"},
	})

	r, ok := tbl.Match("/images/thumbs/a.png")
	if !ok || r.Prefix != "/images/thumbs" {
		t.Fatalf("expected longest prefix /images/thumbs, got %+v (ok=%v)", r, ok)
	}

	r, ok = tbl.Match("/images/full/a.png")
	if !ok || r.Prefix != "/images" {
		t.Fatalf("expected /images, got %+v (ok=%v)", r, ok)
	}

	r, ok = tbl.Match("/other")
	if !ok || r.Prefix != "/" {
		t.Fatalf("expected root fallback, got %+v (ok=%v)", r, ok)
	}
}

func TestRouteTableBoundaryRespectsSegments(t *testing.T) {
	tbl := NewRouteTable([]*Route{
		{Prefix: "/img"},
	})
	// "/images" must NOT match the "/img" route: it's a different segment,
	// not a sub-path of it.
	_, ok := tbl.Match("/images/a.png")
	if ok {
		t.Fatal("expected /images to not match /img boundary")
	}
	_, ok = tbl.Match("/img/a.png")
	if !ok {
		t.Fatal("expected /img/a.png to match /img")
	}
	_, ok = tbl.Match("/img")
	if !ok {
		t.Fatal("expected exact /img to match")
	}
}

func TestVirtualHostResolveFallsBackToFirst(t *testing.T) {
	table := NewListenerTable()
	table.Register("0.0.0.0:8080", &VirtualHost{ServerName: "example.com"})
	table.Register("0.0.0.0:8080", &VirtualHost{ServerName: "other.com"})

	vh := table.Resolve("0.0.0.0:8080", "OTHER.COM:8080")
	if vh == nil || vh.ServerName != "other.com" {
		t.Fatalf("expected case-insensitive match to other.com, got %+v", vh)
	}

	vh = table.Resolve("0.0.0.0:8080", "unknown.test")
	if vh == nil || vh.ServerName != "example.com" {
		t.Fatalf("expected fallback to first server block, got %+v", vh)
	}
}
