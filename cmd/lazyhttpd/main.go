package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dqx0.com/go/lazyhttp/httpx"
	"dqx0.com/go/lazyhttp/internal/obs"
)

func main() {
	var (
		host     = flag.String("host", "localhost", "listen host")
		port     = flag.Int("port", 50007, "listen port")
		bufSize  = flag.Int("buffer", 1024, "bytes requested per read")
		maxLine  = flag.Int("max-line", 8<<10, "maximum start line / header line length")
		maxBody  = flag.Int64("max-body", 0, "maximum body size, 0 for unlimited")
		readTO   = flag.Duration("read-timeout", 30*time.Second, "per-connection read deadline")
		writeTO  = flag.Duration("write-timeout", 30*time.Second, "per-connection write deadline")
		logLevel = flag.String("log-level", "info", "debug, info, warn or error")
		logFmt   = flag.String("log-format", "json", "json or text")
		metricsI = flag.Duration("metrics-interval", 0, "log metric totals this often, 0 to log only at shutdown")
	)
	flag.Parse()

	zl := zerolog.New(os.Stderr).With().Timestamp().Str("app", "lazyhttpd").Logger()
	lvl, err := obs.ParseLevel(*logLevel)
	if err != nil {
		zl.Fatal().Err(err).Msg("bad flag")
	}
	var logger obs.Logger
	switch *logFmt {
	case "json":
		logger = obs.ZeroLogger{L: zl, Min: lvl}
	case "text":
		logger = obs.StdLogger{L: log.New(os.Stderr, "", log.LstdFlags), Min: lvl, Pref: "lazyhttpd "}
	default:
		zl.Fatal().Str("log-format", *logFmt).Msg("bad flag")
	}

	meter := obs.NewCounterMeter()
	s := &httpx.Server{
		Addr:           net.JoinHostPort(*host, strconv.Itoa(*port)),
		Handler:        httpx.EchoHandler(),
		ReadBufferSize: *bufSize,
		MaxLineBytes:   *maxLine,
		MaxBodyBytes:   *maxBody,
		ReadTimeout:    *readTO,
		WriteTimeout:   *writeTO,
		Logger:         logger,
		Meter:          meter,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe() }()
	logger.Logf(obs.Info, "starting server on http://%s", s.Addr)
	if *metricsI > 0 {
		go func() {
			t := time.NewTicker(*metricsI)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					logMetrics(logger, meter)
				}
			}
		}()
	}

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, httpx.ErrServerClosed) {
			zl.Fatal().Err(err).Msg("serve")
		}
	case <-ctx.Done():
		logger.Logf(obs.Info, "shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			logger.Logf(obs.Warn, "shutdown: %v", err)
			_ = s.Close()
		}
		logMetrics(logger, meter)
	}
}

func logMetrics(logger obs.Logger, m *obs.CounterMeter) {
	snap := m.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logger.Logf(obs.Info, "metric %s %g", k, snap[k])
	}
}
