// Package httpx reads HTTP/1.x requests lazily off a byte stream and
// writes responses in a fixed wire layout.
//
// A LazyRequest pulls lines from the connection only when one of its
// accessors needs them, so a handler that routes on the path never reads
// the headers, and one that inspects headers never pays for the body.
// Headers and Body are once-only: draining either a second time fails with
// an *Error of KindBacktrack.
//
// Line terminators LF, CR and CRLF are all accepted, including a CRLF split
// across two reads. A read that returns fewer bytes than requested ends the
// request; there is no Content-Length or chunked framing and no
// keep-alive.
//
// Quick start (server):
//
//	s := &httpx.Server{Addr: "localhost:50007"}
//	s.Handler = httpx.HandlerFunc(func(ctx context.Context, r *httpx.LazyRequest) (*httpx.Response, error) {
//	    path, err := r.Path()
//	    if err != nil {
//	        return nil, err
//	    }
//	    return httpx.NewResponse(httpx.HTTP11, httpx.StatusOK, httpx.WithBody([]byte(path)))
//	})
//	if err := s.ListenAndServe(); err != nil { log.Fatal(err) }
//
// Quick start (client):
//
//	c := &httpx.Client{}
//	b, err := c.Send(ctx, "localhost:50007", []byte("GET / HTTP/1.1\n\n"))
//	if err != nil { log.Fatal(err) }
//	fmt.Println(string(b))
package httpx
