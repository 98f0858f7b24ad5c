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

func handleRequest(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqLog := log.WithField("request_id", uuid.New().String())
	query := event.QueryStringParameters

	page, err := eng.Search(ctx, engine.SearchParams{
		Query:     query["q"],
		Skip:      utils.IntParam(query, "skip", 0),
		Limit:     utils.IntParam(query, "limit", engine.DefaultLimit),
		SortField: query["sort_by"],
		SortOrder: query["order"],
		Duplicate: utils.BoolParam(query, "is_duplicate"),
	})
	if err != nil {
		reqLog.WithError(err).Error("failed to search submissions")
		return utils.ErrorResponse(err)
	}

	return utils.JSONResponse(200, page)
}

func main() {
	lambda.Start(handleRequest)
}
