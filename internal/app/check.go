package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"liuproxy_checker/internal/service/console"
	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/internal/shared/types"
	"liuproxy_checker/proxypool/dispatcher"
	"liuproxy_checker/proxypool/model"
	"liuproxy_checker/proxypool/registry"
	"liuproxy_checker/proxypool/storage"
)

// RunCheck validates every proxy in file once, streams progress to progress
// and writes the final table to out. It returns when every result has been
// published or ctx ends.
func RunCheck(ctx context.Context, cfg *types.Config, file string, out, progress io.Writer) error {
	return runCheck(ctx, cfg, newValidator(cfg), file, out, progress)
}

func runCheck(ctx context.Context, cfg *types.Config, tester dispatcher.Tester, file string, out, progress io.Writer) error {
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("cannot read proxy list: %w", err)
	}

	display := console.New(progress)
	p := newPipeline(cfg, tester, registry.New(storage.NewFileStorage(file)), display)

	if err := p.manager.LoadProxies(); err != nil {
		return fmt.Errorf("failed to load proxies from %s: %w", file, err)
	}
	if len(p.manager.ListProxies()) == 0 {
		logger.Warn().Str("file", file).Msg("No proxies to check.")
		return display.Render(out)
	}

	pubCtx, stop := context.WithCancel(ctx)
	defer stop()
	p.publisher.Observe(func(model.ValidationResult) {
		if !p.manager.Status().Running {
			stop()
		}
	})

	if _, err := p.manager.StartRun(); err != nil {
		return err
	}
	p.publisher.Run(pubCtx)

	st := p.manager.Status()
	if err := display.Render(out); err != nil {
		return err
	}
	if st.Running {
		return fmt.Errorf("check interrupted: %w", ctx.Err())
	}
	fmt.Fprintln(out, st.String())
	return nil
}
