// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	g "github.com/mahabubulhasibshawon/parcel-express/internal/adapters/grpc"
	pb "github.com/mahabubulhasibshawon/parcel-express/internal/adapters/grpc/proto"
	"github.com/mahabubulhasibshawon/parcel-express/internal/adapters/redis"
	"github.com/mahabubulhasibshawon/parcel-express/internal/adapters/repository"
	"github.com/mahabubulhasibshawon/parcel-express/internal/application"
	"github.com/mahabubulhasibshawon/parcel-express/internal/config"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync(zl) }()
	zl = zl.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		zl.Fatal("failed to connect to DB", zap.Error(err))
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		zl.Fatal("failed to ping DB", zap.Error(err))
	}
	if err := repository.Migrate(ctx, db); err != nil {
		zl.Fatal("failed to init DB", zap.Error(err))
	}

	cache := redis.NewCache(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	defer cache.Close()
	if err := cache.Ping(pingCtx); err != nil {
		zl.Fatal("failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
	}

	repo := repository.NewPostgresRepository(db)
	orders := application.NewOrderService(repo, cache, cfg.Pricing.RateBook(), zl)
	srv := g.NewServer(orders)

	lis, err := net.Listen("tcp", cfg.GRPC.ListenAddr)
	if err != nil {
		zl.Fatal("failed to listen", zap.Error(err), zap.String("addr", cfg.GRPC.ListenAddr))
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		g.RequestLogger(zl),
		g.AuthInterceptor([]byte(cfg.JWT.Secret)),
	))
	pb.RegisterOrderServiceServer(grpcServer, srv)

	go func() {
		<-ctx.Done()
		zl.Info("shutting down")
		grpcServer.GracefulStop()
	}()

	zl.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	if err := grpcServer.Serve(lis); err != nil {
		zl.Fatal("failed to serve", zap.Error(err))
	}
}
