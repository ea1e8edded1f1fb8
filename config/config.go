// Package config decodes and validates the TOML configuration file the CLI
// is pointed at (§6.1): global client limits plus one or more server
// blocks, each with its routes, CGI handlers and error pages.
package config

// Defaults applied to File fields the TOML document is allowed to omit
// (§6.1): a 30 second client read timeout and a 10 MiB request body cap.
const (
	DefaultClientTimeoutSecs = 30
	DefaultClientMaxBodySize = 10 * 1024 * 1024
)

// File is the top-level decoded TOML document.
type File struct {
	ClientTimeoutSecs int            `toml:"client_timeout_secs" validate:"min=1"`
	ClientMaxBodySize int64          `toml:"client_max_body_size" validate:"min=0"`
	// Not tagged "dive": each server block is validated individually in
	// loader.go's validServers so one invalid block can be dropped without
	// failing the whole document.
	Servers           []ServerConfig `toml:"servers" validate:"required,min=1"`
}

// ServerConfig is one server{} block: one document root and route table,
// bound to one or more ports on one address.
type ServerConfig struct {
	ServerAddress string                  `toml:"server_address" validate:"required"`
	Ports         []int                   `toml:"ports" validate:"required,min=1,dive,min=1,max=65535"`
	ServerName    string                  `toml:"server_name"`
	Root          string                  `toml:"root" validate:"required"`
	AdminAccess   bool                    `toml:"admin_access"`
	CGIHandlers   map[string]string       `toml:"cgi_handlers"`
	Routes        map[string]RouteConfig  `toml:"routes"`
	Errors        map[string]ErrorPage    `toml:"errors"`
}

// RouteConfig is one routes[prefix] block.
type RouteConfig struct {
	Methods          []string `toml:"methods"`
	Directory        string   `toml:"directory"`
	DefaultFile      string   `toml:"default_file"`
	DirectoryListing bool     `toml:"directory_listing"`
	Redirect         string   `toml:"redirect"`
	RedirectType     int      `toml:"redirect_type" validate:"omitempty,oneof=301 302"`
	UploadDir        string   `toml:"upload_dir"`
	CGIExtension     string   `toml:"cgi_extension"`
}

// ErrorPage is one errors[status] block.
type ErrorPage struct {
	Filename string `toml:"filename"`
}
