package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcfg "github.com/park285/Cheese-Damas/internal/config"
	"github.com/park285/Cheese-Damas/internal/matchstore"
	"github.com/park285/Cheese-Damas/internal/msgcat"
	"github.com/park285/Cheese-Damas/internal/netplay"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"github.com/park285/Cheese-Damas/internal/protocol"
	"github.com/park285/Cheese-Damas/internal/textview"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// The terminal belongs to the game; logs go to a file unless asked otherwise.
	if os.Getenv("LOG_TO_CONSOLE") == "" {
		_ = os.Setenv("LOG_TO_CONSOLE", "false")
		_ = os.Setenv("LOG_TO_FILE", "true")
	}
	if err := obslog.InitFromEnv("damas"); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("msgcat init error: %v", err)
	}
	deps, err := matchstore.New(cfg)
	if err != nil {
		log.Fatalf("matchstore init error: %v", err)
	}
	defer func() { _ = deps.Close() }()

	out := textview.NewPresenter(os.Stdout, textview.NewFormatter(cat))
	sh := newShell(cfg, out, deps.Recorder, deps.History, dialRelay(cfg, out))
	defer sh.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	out.Sayf("client.help", nil)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			quit := sh.handle(cctx, line)
			cancel()
			if quit {
				return
			}
		}
	}
}

func dialRelay(cfg *appcfg.AppConfig, out *textview.Presenter) connector {
	return func(ctx context.Context, onMsg func(protocol.Message), onDrop func()) (netplay.Sender, func() error, error) {
		c := netplay.NewClient(cfg.RelayURL,
			netplay.WithPingInterval(cfg.PingInterval),
			netplay.WithWriteTimeout(cfg.WriteTimeout),
		)
		c.OnMessage(onMsg)
		c.OnStateChange(func(state netplay.ConnState) {
			obslog.L().Info("relay_state", zap.String("state", state.String()))
			if state == netplay.StateDisconnected || state == netplay.StateFailed {
				onDrop()
			}
		})
		if err := c.Connect(ctx); err != nil {
			return nil, nil, err
		}
		out.Sayf("client.connected", map[string]any{"URL": cfg.RelayURL})
		return c, func() error { return c.Close(context.Background()) }, nil
	}
}
