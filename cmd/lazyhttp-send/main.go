package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dqx0.com/go/lazyhttp/httpx"
)

const defaultMessage = "GET /path/to/resource HTTP/1.1\nHost: localhost\nAccept-Language: en\n\nTHIS IS SOME BODY TEXT"

func main() {
	var (
		addr    = flag.String("addr", "localhost:50007", "server address")
		msg     = flag.String("msg", defaultMessage, `raw request; \n and \r escapes are expanded`)
		timeout = flag.Duration("timeout", 10*time.Second, "whole exchange timeout")
	)
	flag.Parse()

	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()

	raw := strings.NewReplacer(`\r`, "\r", `\n`, "\n").Replace(*msg)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := &httpx.Client{}
	b, err := c.Send(ctx, *addr, []byte(raw))
	if err != nil {
		zl.Fatal().Err(err).Str("addr", *addr).Msg("send")
	}
	fmt.Println(string(b))
}
