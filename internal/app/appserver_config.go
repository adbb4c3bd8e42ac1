package app

import (
	"path/filepath"

	"liuproxy_checker/internal/shared/types"
	manager "liuproxy_checker/proxypool"
	"liuproxy_checker/proxypool/dispatcher"
	"liuproxy_checker/proxypool/model"
	"liuproxy_checker/proxypool/publisher"
	"liuproxy_checker/proxypool/registry"
	"liuproxy_checker/proxypool/sink"
	"liuproxy_checker/proxypool/validator"
)

// pipeline 是 Registry -> Dispatcher -> Sink -> Publisher -> Display 的完整链路。
type pipeline struct {
	sink      *sink.Sink
	publisher *publisher.Publisher
	manager   *manager.Manager
}

// newValidator builds the proxy worker from the [checker] section.
func newValidator(cfg *types.Config) *validator.Validator {
	geo := validator.NewGeoClient(cfg.GeoURL, cfg.GeoTimeout())
	return validator.NewValidator(cfg.ConnectTimeout(), geo, validator.WithEchoURL(cfg.EchoURL))
}

func newPipeline(cfg *types.Config, tester dispatcher.Tester, reg *registry.Registry, display model.Display) *pipeline {
	s := sink.New()
	disp := dispatcher.New(tester, s, cfg.Workers)
	mgr := manager.NewManager(reg, disp, display, nil)
	pub := publisher.New(s, display, cfg.PublishInterval(), publisher.Mode(cfg.PublishMode))
	pub.Observe(mgr.OnPublished)
	return &pipeline{
		sink:      s,
		publisher: pub,
		manager:   mgr,
	}
}

// resolveProxiesPath makes a relative proxies_file relative to the config directory.
func resolveProxiesPath(cfg *types.Config, configDir string) string {
	p := cfg.ProxiesFile
	if p == "" || filepath.IsAbs(p) || configDir == "" {
		return p
	}
	return filepath.Join(configDir, p)
}
