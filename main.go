package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CProject/global/config"
	"CProject/logger"
	"CProject/service/backend"
	"CProject/service/game"
	"CProject/service/game/handlers"
	"CProject/service/gateway"
	"CProject/service/nonce"
	"CProject/service/session"
	"CProject/service/stream"
	"CProject/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfgPath := os.Getenv("CGW_CONFIG")
	if err := config.Load(cfgPath); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.Global

	ids.SetNodeID(cfg.NodeID)

	// 1) 后端客户端 + nonce 簿记
	bk := backend.NewClient(cfg.BackendBaseURL,
		backend.WithSubmitTimeout(cfg.SubmitTimeout),
		backend.WithAccountTimeout(cfg.AccountTimeout),
	)
	nonces := nonce.NewManager()

	// nonce 快照（可选）配置了 redis 才开
	var snapshots nonce.SnapshotStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		snapshots = nonce.NewRedisStore(rdb)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := nonces.Restore(ctx, snapshots); err != nil {
			logger.Warnf("[main] nonce restore skipped: %v", err)
		}
		cancel()
	}

	// 2) 编排引擎
	engine := game.NewEngine(bk, nonces, cfg.EventWaitTimeout)

	// 3) 会话管理 先订阅再注册的顺序由 CreateSession 保证
	newStream := func(publicKeyHex string) (session.Updates, error) {
		st := stream.NewUpdatesStream(cfg.UpdatesWSURL)
		if err := st.ConnectForAccount(publicKeyHex); err != nil {
			return nil, err
		}
		return st, nil
	}
	sessions := session.NewManager(session.ManagerConf{
		MaxIdle:    cfg.SessionMaxIdle,
		SweepEvery: cfg.SweepEvery,
	}, nonces, newStream, engine)

	// 4) 消息分发
	disp := game.NewDispatcher()
	disp.Register(handlers.NewStartGameHandler())
	disp.Register(handlers.NewMoveHandler())
	disp.Register(handlers.NewBalanceHandler())
	disp.Register(handlers.NewPingHandler())

	// 5) HTTP + WebSocket
	gw := gateway.NewServer(sessions, engine, disp, bk)

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", gw.HandleWS)
	r.GET("/healthz", gw.HandleHealthz)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		logger.Infof("[HTTP] listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 6) 优雅停机：关监听 → 关会话 → 落 nonce 快照
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("[main] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	sessions.Close()

	if snapshots != nil {
		if err := nonces.Persist(ctx, snapshots); err != nil {
			logger.Errorf("[main] nonce persist failed: %v", err)
		}
	}
}
