package main

import (
	"context"
	"fmt"
	"strconv"

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

	id, err := strconv.ParseInt(event.PathParameters["id"], 10, 64)
	if err != nil {
		return utils.JSONResponse(400, map[string]string{"error": "Submission id must be an integer"})
	}

	submission, err := eng.GetByID(ctx, id)
	if err != nil {
		reqLog.WithError(err).WithField("id", id).Error("failed to get submission")
		return utils.ErrorResponse(err)
	}
	if submission == nil {
		return utils.JSONResponse(404, map[string]string{
			"error": fmt.Sprintf("Submission %d not found", id),
		})
	}

	return utils.JSONResponse(200, submission)
}

func main() {
	lambda.Start(handleRequest)
}
