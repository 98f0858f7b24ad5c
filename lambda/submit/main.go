package main

import (
	"context"
	"encoding/json"
	"fmt"

	"formsystem/backend/cache"
	"formsystem/backend/db"
	"formsystem/backend/engine"
	"formsystem/backend/types"
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

type SubmitRequest struct {
	Data types.FormData `json:"data"`
}

func handleRequest(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqLog := log.WithField("request_id", uuid.New().String())

	var req SubmitRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		reqLog.WithError(err).Warn("unparseable request body")
		return utils.JSONResponse(400, map[string]string{
			"error": fmt.Sprintf("Invalid request body: %v", err),
		})
	}

	submission, err := eng.Submit(ctx, req.Data)
	if err != nil {
		reqLog.WithError(err).Warn("submit failed")
		return utils.ErrorResponse(err)
	}

	reqLog.WithFields(logrus.Fields{
		"id":           submission.ID,
		"is_duplicate": submission.IsDuplicate,
	}).Info("submission created")
	return utils.JSONResponse(201, submission)
}

func main() {
	lambda.Start(handleRequest)
}
