package biz

import (
	"github.com/go-playground/validator/v10"

	"github.com/overlordausritter/beastgpt/pkg/utils/json"
)

// QueryRequest is the body of POST /llamaquery.
type QueryRequest struct {
	Query string `json:"query" validate:"required"`
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseQuery extracts the query from a raw request body.
// A body that is not a JSON object, or whose query is absent, null,
// not a string or empty, yields ErrMissingQuery.
func ParseQuery(body []byte) (string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return "", ErrMissingQuery
	}

	var req QueryRequest
	if field, ok := raw["query"]; ok {
		if err := json.Unmarshal(field, &req.Query); err != nil {
			return "", ErrMissingQuery
		}
	}
	if err := requestValidator.Struct(&req); err != nil {
		return "", ErrMissingQuery
	}
	return req.Query, nil
}
