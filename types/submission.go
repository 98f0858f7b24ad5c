package types

// FormData is the submitted field mapping. Content is opaque to the engine
// except for the email field.
type FormData map[string]interface{}

// Email returns the raw email field, or "" when absent or not a string.
func (f FormData) Email() string {
	s, _ := f["email"].(string)
	return s
}

// Field returns the named field as a string, or "" when absent or not a string.
func (f FormData) Field(name string) string {
	s, _ := f[name].(string)
	return s
}

type Submission struct {
	ID          int64    `json:"id" dynamodbav:"id"`
	FormData    FormData `json:"form_data" dynamodbav:"form_data"`
	IsDuplicate bool     `json:"is_duplicate" dynamodbav:"is_duplicate"`
	SubmittedAt int64    `json:"submitted_at" dynamodbav:"submitted_at"` // Unix timestamp
}
