package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"agentsend/internal/config"
	"agentsend/internal/repository/account"
	redisSvc "agentsend/internal/service/redis"
	"agentsend/internal/service/relay"
	"agentsend/internal/storage"
	"agentsend/internal/utils/log"
)

func main() {
	cfg := config.Parse()

	mongoDBClient, err := initMongo(cfg.MongoURI)
	if err != nil {
		log.Fatal("connect to mongo failed", zap.Error(err))
	}

	db := mongoDBClient.Database("agentsend")

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	queue := redisSvc.NewQueue(rdb)
	accounts := account.NewAccountRepo(db)
	ledgers := relay.NewLedgerManager(storage.NewRedis(rdb), cfg.ConfirmDelay)
	defer ledgers.Close()

	s := relay.NewHttpServer(accounts, queue, ledgers)
	if err := s.Run(cfg.ListenAddr); err != nil {
		log.Fatal("relay stopped", zap.Error(err))
	}
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
