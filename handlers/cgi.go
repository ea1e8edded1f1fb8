package handlers

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kvasten/webmux/core/dispatch"
	httpmsg "github.com/kvasten/webmux/core/http"
	"github.com/kvasten/webmux/core/pools"
)

// CGI runs a CGI/1.1 script for a route whose cgi_extension matches the
// request path. The child's stdin/stdout pumping and process wait are
// handed to the shared WorkerPool so the single event-loop goroutine blocks
// only on a bounded-timeout channel receive for the handoff, not on the
// subprocess's own I/O — a hung script becomes a 504, not a wedged server
// (see the CGI section of DESIGN.md for the async-model gap this leaves).
type CGI struct {
	Pool    *pools.WorkerPool
	Timeout time.Duration
}

func NewCGI(pool *pools.WorkerPool, timeout time.Duration) *CGI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CGI{Pool: pool, Timeout: timeout}
}

type cgiResult struct {
	resp *httpmsg.Response
	err  *dispatch.HandlerError
}

func (c *CGI) Handle(req *httpmsg.Request, rc *dispatch.RouteContext) (*httpmsg.Response, *dispatch.HandlerError) {
	scriptPath, ok := ResolvePath(rc.Route.Directory, rc.RelativePath)
	if !ok {
		return nil, dispatch.NewHandlerError(403, nil)
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, dispatch.NewHandlerError(404, err)
	}

	interpreter, hasInterpreter := rc.VHost.CGIHandlerFor(rc.Route.CGIExtension)

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	done := make(chan cgiResult, 1)
	submitted := c.Pool.Submit(func() {
		resp, herr := c.run(ctx, req, rc, scriptPath, interpreter, hasInterpreter)
		done <- cgiResult{resp: resp, err: herr}
	})
	if !submitted {
		return nil, dispatch.NewHandlerError(503, nil)
	}

	select {
	case result := <-done:
		return result.resp, result.err
	case <-ctx.Done():
		return nil, dispatch.NewHandlerError(504, fmt.Errorf("cgi script exceeded %s", c.Timeout))
	}
}

func (c *CGI) run(ctx context.Context, req *httpmsg.Request, rc *dispatch.RouteContext, scriptPath, interpreter string, hasInterpreter bool) (*httpmsg.Response, *dispatch.HandlerError) {
	var cmd *exec.Cmd
	if hasInterpreter {
		cmd = exec.CommandContext(ctx, interpreter, scriptPath)
	} else {
		cmd = exec.CommandContext(ctx, scriptPath)
	}
	cmd.Dir = filepath.Dir(scriptPath)
	cmd.Env = cgiEnviron(req, rc, scriptPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, dispatch.NewHandlerError(500, err)
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, dispatch.NewHandlerError(502, err)
	}

	if len(req.Body) > 0 {
		if _, err := stdin.Write(req.Body); err != nil {
			cmd.Process.Kill()
			return nil, dispatch.NewHandlerError(502, err)
		}
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, dispatch.NewHandlerError(504, fmt.Errorf("cgi script killed after timeout"))
		}
		return nil, dispatch.NewHandlerError(502, fmt.Errorf("%w: %s", err, stderr.String()))
	}

	return parseCGIOutput(stdout.Bytes())
}

func cgiEnviron(req *httpmsg.Request, rc *dispatch.RouteContext, scriptPath string) []string {
	serverAddr, serverPort := splitHostPort(rc.VHost.ServerName)
	scriptComponent := strings.TrimPrefix(scriptPath, rc.Route.Directory)
	pathInfo := strings.TrimPrefix(rc.RelativePath, scriptComponent)

	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=" + req.Version,
		"SERVER_SOFTWARE=webmux",
		"SERVER_NAME=" + serverAddr,
		"SERVER_PORT=" + serverPort,
		"REQUEST_METHOD=" + req.Method,
		"REQUEST_URI=" + req.Path,
		"SCRIPT_NAME=" + rc.MatchedPrefix,
		"SCRIPT_FILENAME=" + scriptPath,
		"PATH_INFO=" + pathInfo,
		"PATH_TRANSLATED=" + filepath.Join(rc.VHost.Root, pathInfo),
		"DOCUMENT_ROOT=" + rc.VHost.Root,
		"QUERY_STRING=" + req.RawQuery,
		"CONTENT_LENGTH=" + strconv.Itoa(len(req.Body)),
		"REMOTE_ADDR=" + req.Peer,
		"REDIRECT_STATUS=200",
	}
	if ct := req.Header.Get("Content-Type"); ct != "" {
		env = append(env, "CONTENT_TYPE="+ct)
	}
	req.Header.Range(func(name string, values []string) {
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env = append(env, key+"="+strings.Join(values, ", "))
	})
	return env
}

// splitHostPort separates a "name:port" server_name into its parts,
// defaulting to port 80 when none is given — CGI/1.1 requires both
// SERVER_NAME and SERVER_PORT even when the config only names one.
func splitHostPort(serverName string) (host, port string) {
	if idx := strings.LastIndexByte(serverName, ':'); idx >= 0 {
		return serverName[:idx], serverName[idx+1:]
	}
	return serverName, "80"
}

// parseCGIOutput splits the CGI document header block from its body and
// maps a "Status:" header to the response status, per CGI/1.1 §6.3.
func parseCGIOutput(out []byte) (*httpmsg.Response, *dispatch.HandlerError) {
	reader := bufio.NewReader(bytes.NewReader(out))
	resp := httpmsg.NewResponse(200)

	for {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		colon := strings.IndexByte(trimmed, ':')
		if colon <= 0 {
			break
		}
		name := strings.TrimSpace(trimmed[:colon])
		value := strings.TrimSpace(trimmed[colon+1:])
		if strings.EqualFold(name, "Status") {
			if code, convErr := strconv.Atoi(strings.Fields(value)[0]); convErr == nil {
				resp.Status = code
			}
			continue
		}
		resp.Header.Add(name, value)
		if err != nil {
			break
		}
	}

	body, _ := io.ReadAll(reader)
	resp.Body = body
	if resp.Header.Get("Content-Type") == "" {
		resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	}
	return resp, nil
}
