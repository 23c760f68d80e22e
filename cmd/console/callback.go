package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
)

type callbackResult struct {
	code             string
	state            string
	err              string
	errorDescription string
}

// callbackServer receives the provider redirect on the console origin.
type callbackServer struct {
	srv     *http.Server
	origin  string
	results chan callbackResult
}

// listenCallback listens on the host of origin. Port 0 picks a free port;
// Origin then reports the one in use.
func listenCallback(origin string) (*callbackServer, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("[console listenCallback] invalid origin %q", origin)
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("[console listenCallback] %w", err)
	}

	cs := &callbackServer{
		origin:  u.Scheme + "://" + ln.Addr().String(),
		results: make(chan callbackResult, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+oauth2.CallbackPath, cs.handle)
	cs.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := cs.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case cs.results <- callbackResult{err: err.Error()}:
			default:
			}
		}
	}()
	return cs, nil
}

func (cs *callbackServer) Origin() string {
	return cs.origin
}

func (cs *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := callbackResult{
		code:             q.Get("code"),
		state:            q.Get("state"),
		err:              q.Get("error"),
		errorDescription: q.Get("error_description"),
	}
	select {
	case cs.results <- res:
	default:
		http.Error(w, "Login already completed.", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if res.err != "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, "Login failed. You can close this window.")
		return
	}
	fmt.Fprintln(w, "Login complete. You can close this window.")
}

// Wait blocks until the provider redirects back or ctx ends.
func (cs *callbackServer) Wait(ctx context.Context) (callbackResult, error) {
	select {
	case <-ctx.Done():
		return callbackResult{}, fmt.Errorf("waiting for the provider callback: %w", ctx.Err())
	case res := <-cs.results:
		if res.err != "" {
			if res.errorDescription != "" {
				return res, fmt.Errorf("provider returned %s: %s", res.err, res.errorDescription)
			}
			return res, fmt.Errorf("provider returned %s", res.err)
		}
		return res, nil
	}
}

func (cs *callbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return cs.srv.Shutdown(ctx)
}
