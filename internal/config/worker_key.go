package config

type WorkerKeyStruct struct {
	ResultEmailQueue      string
	ResultEmailRetryQueue string
	ResultEmailDeadQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	ResultEmailQueue:      "result_email_queue",
	ResultEmailRetryQueue: "result_email_retry_queue",
	ResultEmailDeadQueue:  "result_email_dead_queue",
}
