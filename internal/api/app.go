// Package api exposes the controller status over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunServerInterruptible runs the status server in a Go routine and returns
// immediately. Sending on stop shuts the server down gracefully and done
// receives the result.
func RunServerInterruptible(port int, h *Handler) (stop chan<- struct{}, done <-chan error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopCh := make(chan struct{})
	doneCh := make(chan error, 1)

	go func() {
		log.WithField("addr", srv.Addr).Info("status server listening")
		err := srv.ListenAndServe()
		// http.ErrServerClosed is returned on Shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneCh <- err
			return
		}
		doneCh <- nil
	}()

	go func() {
		<-stopCh
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	return stopCh, doneCh
}
