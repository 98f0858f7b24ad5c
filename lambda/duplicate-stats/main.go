package main

import (
	"context"

	"formsystem/backend/cache"
	"formsystem/backend/db"
	"formsystem/backend/engine"
	"formsystem/backend/utils"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	log *logrus.Logger
	eng *engine.Engine
)

func init() {
	log = utils.NewLogger()

	store, err := db.NewDynamoStore(context.Background())
	if err != nil {
		log.WithError(err).Fatal("failed to initialize store")
	}
	eng = engine.New(store, cache.New(log), log, engine.Options{})
}

func handleRequest(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqLog := log.WithField("request_id", uuid.New().String())

	stats, err := eng.DuplicateStats(ctx)
	if err != nil {
		reqLog.WithError(err).Error("failed to compute duplicate stats")
		return utils.ErrorResponse(err)
	}

	return utils.JSONResponse(200, stats)
}

func main() {
	lambda.Start(handleRequest)
}
