package app

import (
	"context"
	"sync"

	"liuproxy_checker/internal/service/web"
	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/internal/shared/types"
	"liuproxy_checker/proxypool/dispatcher"
	"liuproxy_checker/proxypool/model"
	"liuproxy_checker/proxypool/registry"
	"liuproxy_checker/proxypool/storage"
)

// AppServer is the web host: it owns the pipeline and serves the results page.
type AppServer struct {
	cfg         *types.Config
	proxiesPath string

	hub      *web.Hub
	pipeline *pipeline

	waitGroup sync.WaitGroup
}

// New creates a web host. configDir is used to resolve a relative proxies_file.
func New(cfg *types.Config, configDir string) *AppServer {
	return newWithTester(cfg, configDir, newValidator(cfg))
}

func newWithTester(cfg *types.Config, configDir string, tester dispatcher.Tester) *AppServer {
	s := &AppServer{
		cfg:         cfg,
		proxiesPath: resolveProxiesPath(cfg, configDir),
		hub:         web.NewHub(),
	}

	var store registry.Storage
	if s.proxiesPath != "" {
		store = storage.NewFileStorage(s.proxiesPath)
	}
	s.pipeline = newPipeline(cfg, tester, registry.New(store), s.hub)
	s.pipeline.publisher.Observe(func(model.ValidationResult) {
		s.hub.BroadcastStatusUpdate(s.pipeline.manager.Status())
	})
	return s
}

// Controller exposes the proxy manager to the web handler.
func (s *AppServer) Controller() web.CheckerController {
	return s.pipeline.manager
}

// Run loads the proxy list, starts the hub, the publisher and the web server,
// and blocks until ctx is cancelled.
func (s *AppServer) Run(ctx context.Context) error {
	logger.Info().Str("proxies_file", s.proxiesPath).Msg("Starting checker in 'serve' mode...")

	if err := s.pipeline.manager.LoadProxies(); err != nil {
		logger.Error().Err(err).Msg("Failed to load proxies from storage. Starting with an empty list.")
	}

	s.waitGroup.Add(2)
	go func() {
		defer s.waitGroup.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer s.waitGroup.Done()
		s.pipeline.publisher.Run(ctx)
	}()

	if err := web.StartServer(ctx, &s.waitGroup, s.cfg, s.pipeline.manager, s.hub); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received. Stopping...")
	s.Wait()
	return nil
}

func (s *AppServer) Wait() {
	s.waitGroup.Wait()
}
