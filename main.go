package main

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zlnvch/cipherchat/api"
	"github.com/zlnvch/cipherchat/cache/redis"
	"github.com/zlnvch/cipherchat/mq/sqsmq"
	"github.com/zlnvch/cipherchat/store/dynamo"
	"golang.org/x/oauth2"
)

const (
	DynamoDBTable               = "Cipherchat"
	SQSPurgeSenderMessagesQueue = "PurgeSenderMessagesQueue"
)

func main() {
	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	cipherchatStore, err := dynamo.NewDynamoCipherchatStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	purgeQueue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), SQSPurgeSenderMessagesQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	cipherchatCache, err := redis.NewRedisCipherchatCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")

	var oauthConfigs = map[string]*oauth2.Config{
		"github": {
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  allowedOrigin + "/oauth/callback",
		},
		"google": {
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  allowedOrigin + "/oauth/callback",
		},
	}

	jwtSecret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatalf("Failed to decode base64 jwtSecret: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	cipherchatApi, err := api.NewCipherchatAPI(cipherchatStore, purgeQueue, cipherchatCache, oauthConfigs, jwtSecret, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create cipherchat api: %v", err)
	}

	mux := http.NewServeMux()
	cipherchatApi.RegisterRoutes(mux, allowedOrigin)

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	log.Printf("Starting server on host port: %s\n", hostPort)
	log.Fatal(http.ListenAndServe(":"+hostPort, mux))
}
