// Package server implements the server loop (component H): a single
// goroutine that owns every session and drives the protocol mediator at a
// fixed tick, bridging the transport adapter's background I/O and the
// LLM client's background streaming into one serialized event loop.
package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fnc12/termihui-sub000/internal/completion"
	"github.com/fnc12/termihui-sub000/internal/config"
	"github.com/fnc12/termihui-sub000/internal/llm"
	"github.com/fnc12/termihui-sub000/internal/protocol"
	"github.com/fnc12/termihui-sub000/internal/storage"
	"github.com/fnc12/termihui-sub000/internal/transport"
)

const tickInterval = 10 * time.Millisecond

// Server owns the HTTP listener, the transport adapter, and the mediator
// that the tick loop drives.
type Server struct {
	log zerolog.Logger
	cfg config.Config

	store     *storage.ServerStore
	transport *transport.Adapter
	mediator  *protocol.Mediator
	runID     int64

	httpServer *http.Server
}

// New wires together storage, the transport adapter, the completion
// provider, the LLM client, and the mediator, per the given configuration.
func New(log zerolog.Logger, cfg config.Config) (*Server, error) {
	store, err := storage.OpenServerStore(storage.ServerStatePath(cfg.DataRoot))
	if err != nil {
		return nil, err
	}

	crashed, err := store.WasLastRunCrashed()
	if err != nil {
		log.Warn().Err(err).Msg("could not determine previous run state")
	} else if crashed {
		log.Warn().Msg("previous server run did not shut down cleanly")
	}

	runID, err := store.RecordStart()
	if err != nil {
		store.Close()
		return nil, err
	}

	tr := transport.New(log)
	comp := completion.New()
	llmClient := llm.NewClient()

	mediator := protocol.New(log, tr, store, comp, llmClient, cfg.DataRoot, runID)

	mux := http.NewServeMux()
	mux.Handle("/ws", tr)

	return &Server{
		log:       log,
		cfg:       cfg,
		store:     store,
		transport: tr,
		mediator:  mediator,
		runID:     runID,
		httpServer: &http.Server{
			Addr:    cfg.BindAddress,
			Handler: mux,
		},
	}, nil
}

// Run starts the HTTP listener and blocks running the tick loop until
// SIGINT/SIGTERM, then performs graceful shutdown.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.BindAddress).Msg("listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return s.shutdown()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Server) tick() {
	inbound, events := s.transport.Update()
	s.mediator.HandleConnectionEvents(events)
	for _, msg := range inbound {
		s.mediator.HandleInbound(msg.ClientID, msg.Data)
	}
	s.mediator.Tick()
	s.mediator.DrainAIChunks()
}

func (s *Server) shutdown() error {
	s.log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(ctx)

	s.mediator.CloseAllSessions()

	if err := s.store.RecordStop(s.runID); err != nil {
		s.log.Error().Err(err).Msg("record stop failed")
	}

	return s.store.Close()
}
