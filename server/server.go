package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sisu-network/lib/log"
)

const Namespace = "wallet"

type Server struct {
	srv           *http.Server
	listenAddress string
}

// NewRpcServer registers the api handler under the wallet namespace.
func NewRpcServer(api *ApiHandler) (*rpc.Server, error) {
	handler := rpc.NewServer()
	if err := handler.RegisterName(Namespace, api); err != nil {
		return nil, err
	}

	return handler, nil
}

func NewServer(handler *rpc.Server, gatherer prometheus.Gatherer, port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	listenAddress := fmt.Sprintf("0.0.0.0:%d", port)
	return &Server{
		srv:           &http.Server{Addr: listenAddress, Handler: mux},
		listenAddress: listenAddress,
	}
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Run() {
	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		panic(err)
	}

	log.Info("Running server at ", s.listenAddress)
	if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server stopped, err = ", err)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
