package config

type WorkerKeyStruct struct {
	// GradingRequestsQueue receives submitted sessions for the external grader.
	GradingRequestsQueue string
	// GradingResultsQueue receives finished scores to persist.
	GradingResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GradingRequestsQueue: "grading_requests_queue",
	GradingResultsQueue:  "grading_results_queue",
}
