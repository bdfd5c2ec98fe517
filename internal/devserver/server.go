package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cli/browser"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/packer/internal/assets"
	"github.com/wolfeidau/packer/internal/config"
	httpmiddleware "github.com/wolfeidau/packer/internal/http"
	"github.com/wolfeidau/packer/internal/loaders"
	"github.com/wolfeidau/packer/internal/logger"
)

var (
	ErrPortInUse = errors.New("port already in use")
	ErrNotBuilt  = errors.New("no successful build yet")
)

// Builder produces a build result. *assets.Pipeline satisfies it.
type Builder interface {
	Build(ctx context.Context) (*assets.Result, error)
}

// Server serves the latest build result from memory, falling back to the
// served directory for anything the build did not produce.
type Server struct {
	cfg      *config.Config
	builder  Builder
	log      zerolog.Logger
	opener   func(url string) error
	writeTo  string
	debounce time.Duration
	timeout  time.Duration

	current atomic.Pointer[assets.Result]
	builds  atomic.Int64

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

type Option func(*Server)

// WithOpener replaces the function used to open the browser.
func WithOpener(fn func(url string) error) Option {
	return func(s *Server) {
		s.opener = fn
	}
}

// WithLogger sets the logger used for requests and rebuilds.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithWriteTo also writes every successful build to dir.
func WithWriteTo(dir string) Option {
	return func(s *Server) {
		s.writeTo = dir
	}
}

// WithDebounce sets how long the watcher waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(s *Server) {
		s.debounce = d
	}
}

// WithOpenTimeout bounds how long the server waits to answer before the
// browser is opened anyway.
func WithOpenTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

func New(cfg *config.Config, builder Builder, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		builder:  builder,
		log:      zerolog.Nop(),
		opener:   browser.OpenURL,
		debounce: 100 * time.Millisecond,
		timeout:  10 * time.Second,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result returns the result currently served, nil before the first build.
func (s *Server) Result() *assets.Result {
	return s.current.Load()
}

// Builds returns the number of successful builds.
func (s *Server) Builds() int64 {
	return s.builds.Load()
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address, nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the address browsers should load.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == nil {
		return "http://" + s.cfg.DevServer.Addr() + "/"
	}
	host := s.cfg.DevServer.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	_, port, _ := net.SplitHostPort(addr.String())
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// Handler returns the HTTP handler serving the build.
func (s *Server) Handler() http.Handler {
	static := http.FileServer(http.Dir(s.cfg.Resolve(s.cfg.DevServer.ServedDirectory)))

	middlewares := []httpmiddleware.Middleware{
		logger.Requests(s.log),
		httpmiddleware.NoStore(),
	}
	if s.cfg.DevServer.CompressionEnabled {
		middlewares = append(middlewares, func(h http.Handler) http.Handler {
			return gzhttp.GzipHandler(h)
		})
	}
	middlewares = append(middlewares, httpmiddleware.StripPublicPath(s.cfg.PublicPath))

	return httpmiddleware.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, static)
	}), middlewares...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, static http.Handler) {
	res := s.current.Load()
	if res == nil {
		http.Error(w, ErrNotBuilt.Error(), http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = res.HTML
		}
		if data, ok := res.File(name); ok {
			ct := loaders.ContentType(name)
			if strings.HasPrefix(ct, "text/") || ct == "application/javascript" {
				ct += "; charset=utf-8"
			}
			w.Header().Set("Content-Type", ct)
			http.ServeContent(w, r, name, res.BuiltAt, bytes.NewReader(data))
			return
		}
	}

	static.ServeHTTP(w, r)
}

// Rebuild builds once and, on success, swaps the served result. A failed
// build keeps the previous result.
func (s *Server) Rebuild(ctx context.Context) error {
	res, err := s.builder.Build(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Build failed")
		return err
	}

	if s.writeTo != "" {
		if err := assets.WriteResult(ctx, res, s.writeTo); err != nil {
			s.log.Error().Err(err).Msg("Failed to write build output")
			return err
		}
	}

	s.current.Store(res)
	s.builds.Add(1)

	for _, w := range res.Warnings {
		s.log.Warn().Str("warning", w).Msg("Build warning")
	}
	s.log.Info().
		Int("files", len(res.Files)).
		Dur("duration", res.Duration).
		Msg("Build ready")
	return nil
}

// Run builds, serves until ctx is done and rebuilds when sources change.
// The first build must succeed for the server to start.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Rebuild(ctx); err != nil {
		return err
	}

	addr := s.cfg.DevServer.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s", ErrPortInUse, addr)
		}
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.serveOn(ctx, ln)
}

// serveOn runs the server on ln. The watcher and the browser opener stop
// before it returns.
func (s *Server) serveOn(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := configureHTTPServer(ln.Addr().String(), s.Handler())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	if s.cfg.DevServer.WatchEnabled() {
		w, err := newWatcher(s, s.log)
		if err != nil {
			s.log.Warn().Err(err).Msg("File watching disabled")
		} else {
			wg.Go(func() { w.run(ctx) })
		}
	}

	close(s.ready)

	url := s.URL()
	s.log.Info().Str("url", url).Str("served", s.cfg.DevServer.ServedDirectory).Msg("Dev server listening")

	if s.cfg.DevServer.AutoOpenBrowser {
		wg.Go(func() { s.openBrowser(ctx, url) })
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev server stopped: %w", err)
		}
		return nil
	}

	s.log.Info().Msg("Shutting down dev server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// openBrowser waits until the server answers, then opens url.
func (s *Server) openBrowser(ctx context.Context, url string) {
	client := &http.Client{Timeout: time.Second}

	_, err := backoff.Retry(ctx, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
		return resp.StatusCode, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(s.timeout))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn().Err(err).Msg("Dev server not answering, opening browser anyway")
	}

	if err := s.opener(url); err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("Failed to open browser")
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
