package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"

	"github.com/kvasten/webmux/core/router"
)

var validate = validator.New()

// Load reads and parses the TOML file at path into a File, applying
// applyOverrides before validation, then returns it alongside a
// hashicorp/go-multierror aggregating every rejected server block. A
// server block that fails validation or collides on (address, port,
// server_name) is dropped rather than aborting the whole load; Load
// only fails outright when the file can't be read/parsed, the top-level
// fields fail validation, or zero servers survive.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&f)

	mgr := NewManager()
	mgr.LoadFromEnv("WEBMUX")
	applyOverrides(mgr, &f)

	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("validate top-level config: %w", err)
	}

	var result *multierror.Error
	f.Servers, result = validServers(f.Servers)
	if len(f.Servers) == 0 {
		result = multierror.Append(result, fmt.Errorf("no valid server blocks remain"))
		return nil, result.ErrorOrNil()
	}
	return &f, result.ErrorOrNil()
}

// validServers validates each server block individually and drops those
// that fail validation or collide with an earlier block's (address, port,
// server_name) triple. Two servers may share an (address, port) pair only
// when they declare distinct server_name values, per name-based virtual
// hosting; an exact (address, port, server_name) repeat is a hard error
// for that later block.
func validServers(servers []ServerConfig) ([]ServerConfig, *multierror.Error) {
	var result *multierror.Error
	seen := make(map[string]bool)
	kept := make([]ServerConfig, 0, len(servers))

	for i, sc := range servers {
		if err := validate.Struct(&sc); err != nil {
			result = multierror.Append(result, fmt.Errorf("server[%d] (%s): %w", i, sc.ServerAddress, err))
			continue
		}
		dup := false
		for _, port := range sc.Ports {
			key := sc.ServerAddress + ":" + strconv.Itoa(port) + "/" + sc.ServerName
			if seen[key] {
				result = multierror.Append(result, fmt.Errorf("server[%d] (%s): duplicate server_address:port+server_name %s", i, sc.ServerAddress, key))
				dup = true
				continue
			}
			seen[key] = true
		}
		if dup {
			continue
		}
		kept = append(kept, sc)
	}
	return kept, result
}

// BuildListeners turns a validated File into the engine's listener specs
// and the virtual host / route objects each listener serves.
func BuildListeners(f *File) ([]ListenerSpec, error) {
	byAddr := make(map[string][]*router.VirtualHost)
	var addrOrder []string

	for _, sc := range f.Servers {
		vh := &router.VirtualHost{
			ServerName:  sc.ServerName,
			Root:        sc.Root,
			AdminAccess: sc.AdminAccess,
			CGIHandlers: sc.CGIHandlers,
			ErrorPages:  buildErrorPages(sc.Errors),
		}
		routes := make([]*router.Route, 0, len(sc.Routes))
		for prefix, rc := range sc.Routes {
			routes = append(routes, buildRoute(prefix, sc, rc))
		}
		vh.Routes = router.NewRouteTable(routes)

		for _, port := range sc.Ports {
			addr := sc.ServerAddress + ":" + strconv.Itoa(port)
			if _, ok := byAddr[addr]; !ok {
				addrOrder = append(addrOrder, addr)
			}
			byAddr[addr] = append(byAddr[addr], vh)
		}
	}

	specs := make([]ListenerSpec, 0, len(addrOrder))
	for _, addr := range addrOrder {
		specs = append(specs, ListenerSpec{Addr: addr, VirtualHosts: byAddr[addr]})
	}
	return specs, nil
}

// ListenerSpec mirrors core.ListenerSpec without importing core, so config
// stays a leaf package; the cmd wiring converts between the two.
type ListenerSpec struct {
	Addr         string
	VirtualHosts []*router.VirtualHost
}

func buildRoute(prefix string, sc ServerConfig, rc RouteConfig) *router.Route {
	dir := rc.Directory
	if dir == "" {
		dir = sc.Root
	}
	defaultFile := rc.DefaultFile
	if defaultFile == "" {
		defaultFile = "index.html"
	}
	redirectType := router.RedirectType(rc.RedirectType)
	if rc.Redirect != "" && redirectType == router.RedirectNone {
		redirectType = router.RedirectFound
	}
	return &router.Route{
		Prefix:           prefix,
		Methods:          rc.Methods,
		Directory:        dir,
		DefaultFile:      defaultFile,
		DirectoryListing: rc.DirectoryListing,
		Redirect:         rc.Redirect,
		RedirectType:     redirectType,
		UploadDir:        rc.UploadDir,
		CGIExtension:     rc.CGIExtension,
	}
}

func buildErrorPages(errs map[string]ErrorPage) map[int]string {
	pages := make(map[int]string, len(errs))
	for status, page := range errs {
		code, err := strconv.Atoi(status)
		if err != nil {
			continue
		}
		pages[code] = page.Filename
	}
	return pages
}

// applyDefaults fills the two global client limits with their documented
// defaults when the TOML document omits them (decoding to the Go zero
// value), before validation ever sees the struct. Without this, an
// otherwise spec-legal config that just leaves these keys out fails
// validate.Struct's min=1 on ClientTimeoutSecs, and ClientMaxBodySize's
// omitted zero would be read downstream as "unbounded" instead of capped.
func applyDefaults(f *File) {
	if f.ClientTimeoutSecs == 0 {
		f.ClientTimeoutSecs = DefaultClientTimeoutSecs
	}
	if f.ClientMaxBodySize == 0 {
		f.ClientMaxBodySize = DefaultClientMaxBodySize
	}
}

// applyOverrides lets WEBMUX_CLIENT_TIMEOUT_SECS / WEBMUX_CLIENT_MAX_BODY_SIZE
// win over the TOML file, read through the generic env-loaded Manager before
// the typed File is validated.
func applyOverrides(mgr *Manager, f *File) {
	if v := mgr.GetInt("client.timeout.secs", -1); v >= 0 {
		f.ClientTimeoutSecs = v
	}
	if v, ok := mgr.Get("client.max.body.size"); ok {
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				f.ClientMaxBodySize = n
			}
		}
	}
}
