// Command webmux runs the event-driven HTTP server against a single TOML
// configuration file.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kvasten/webmux/app"
	"github.com/kvasten/webmux/config"
	"github.com/kvasten/webmux/core"
	"github.com/kvasten/webmux/core/dispatch"
	"github.com/kvasten/webmux/core/router"
	"github.com/kvasten/webmux/handlers"
)

func main() {
	root := &cobra.Command{
		Use:   "webmux <config.toml>",
		Short: "Event-driven, single-process HTTP/1.1 server",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, args []string) error {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	file, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	listenerTable := router.NewListenerTable()

	// CGI's WorkerPool is owned by the Engine, but the Engine is built from
	// a Dispatcher that already needs the CGI handler wired in. Build the
	// handler with a nil pool, construct the Engine, then fill the pool in
	// before Serve ever hands it a request.
	cgi := handlers.NewCGI(nil, 10*time.Second)

	dispatcher := dispatch.New(listenerTable, dispatch.Handlers{
		Redirect: handlers.NewRedirect(),
		Delete:   handlers.NewDelete(),
		Upload:   handlers.NewUpload(),
		CGI:      cgi,
		Listing:  handlers.NewListing(),
		Static:   handlers.NewStatic(),
	}, handlers.NewErrorPages())

	engine := core.NewEngine(listenerTable, dispatcher, core.Config{
		MaxBodyBytes: int(file.ClientMaxBodySize),
		IdleTimeout:  time.Duration(file.ClientTimeoutSecs) * time.Second,
		Logger:       log,
	})
	cgi.Pool = engine.WorkerPool()

	specs, err := config.BuildListeners(file)
	if err != nil {
		return fmt.Errorf("build listeners: %w", err)
	}
	coreSpecs := make([]core.ListenerSpec, len(specs))
	for i, s := range specs {
		coreSpecs[i] = core.ListenerSpec{Addr: s.Addr, VirtualHosts: s.VirtualHosts}
	}

	application := app.New(engine, log, time.Duration(file.ClientTimeoutSecs)*time.Second)
	return application.Run(coreSpecs)
}
