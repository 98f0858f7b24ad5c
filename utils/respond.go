package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"formsystem/backend/fault"

	"github.com/aws/aws-lambda-go/events"
)

// JSONResponse marshals body into an API Gateway proxy response.
func JSONResponse(statusCode int, body interface{}) (events.APIGatewayProxyResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: 500,
			Body:       fmt.Sprintf(`{"error": "Failed to marshal response: %v"}`, err),
		}, nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(encoded),
	}, nil
}

// ErrorResponse maps an engine error onto its status code: validation
// failures are the caller's to fix, a missing id is 404, and a store outage
// is a retryable 503.
func ErrorResponse(err error) (events.APIGatewayProxyResponse, error) {
	statusCode := 500
	switch {
	case fault.IsValidation(err):
		statusCode = 400
	case errors.Is(err, fault.ErrNotFound):
		statusCode = 404
	case errors.Is(err, fault.ErrStoreUnavailable):
		statusCode = 503
	}

	return JSONResponse(statusCode, map[string]string{"error": err.Error()})
}

// IntParam reads a numeric query parameter, falling back when absent or
// malformed.
func IntParam(params map[string]string, name string, fallback int) int {
	raw, ok := params[name]
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// BoolParam reads an optional boolean query parameter; nil means absent.
func BoolParam(params map[string]string, name string) *bool {
	raw, ok := params[name]
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return nil
	}
	return &v
}
