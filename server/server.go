package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go2scope/g2s/datastore"
	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

// shutdownDelay is how long in-flight requests get to finish once serving stops.
const shutdownDelay = 5 * time.Second

// Server is an HTTP preview of one dataset.
type Server struct {
	dataset *datastore.Dataset
	handler http.Handler
}

// New returns a server for a created or opened dataset.
func New(d *datastore.Dataset, corsDomains []string) *Server {
	return &Server{
		dataset: d,
		handler: newHandler(d, corsDomains),
	}
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves requests at address until ctx is done.  Stay-alive connections
// don't hog goroutines for more than an hour.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	if address == "" {
		address = DefaultWebAddress
	}
	src := &http.Server{
		Addr:        address,
		Handler:     s,
		ReadTimeout: 1 * time.Hour,
	}
	errCh := make(chan error, 1)
	go func() {
		g2s.Infof("Web server listening at %s ...\n", address)
		errCh <- src.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	g2s.Infof("Shutting down web server at %s ...\n", address)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDelay)
	defer cancel()
	if err := src.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve opens the configured dataset read-only and serves it until ctx is done.
func Serve(ctx context.Context, c *Config) error {
	c.Logging.SetLogger()
	if c.Server.Dataset == "" {
		return fmt.Errorf("no [server] dataset given in %s", c.Location())
	}
	sc, err := c.StoreConfig()
	if err != nil {
		return err
	}
	client, err := storage.NewClient(sc)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			g2s.Errorf("Closing %s client: %v\n", sc.Engine, err)
		}
	}()

	d := datastore.NewDataset(client, datastore.WithReadCache(c.ReadCacheBytes()))
	if err := d.OpenExisting(c.Server.Dataset); err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			g2s.Errorf("Closing dataset %s: %v\n", d, err)
		}
	}()
	return New(d, c.Server.CorsDomains).ListenAndServe(ctx, c.HTTPAddress())
}
