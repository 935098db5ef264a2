package domain

// WorkflowEvent is the flat record passed between workflow steps.
// It is the only data shape the Step Function moves around: the
// serializer fills image_data, the classifier fills inferences, and
// the filter passes the event through untouched or fails the execution.
type WorkflowEvent struct {
	Inferences []string `json:"inferences"`
	S3Key      string   `json:"s3_key"`
	S3Bucket   string   `json:"s3_bucket"`
	ImageData  string   `json:"image_data"`
}

// HandlerResponse is the envelope each Lambda handler returns to the
// state machine. States filter on $.body so the next step receives a
// bare WorkflowEvent again.
type HandlerResponse struct {
	StatusCode int           `json:"statusCode"`
	Body       WorkflowEvent `json:"body"`
}

// OK wraps an event in a 200 response envelope
func OK(body WorkflowEvent) HandlerResponse {
	return HandlerResponse{
		StatusCode: 200,
		Body:       body,
	}
}
