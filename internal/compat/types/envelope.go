package types

// Envelope status codes
const (
	StatusOK    = 20000
	StatusError = 40000

	StatusMessageOK = "Ok."
	APIVersion      = "0.1.20240801"
)

// Envelope is the task-oriented response wrapper of the compatibility API
type Envelope struct {
	Version       string  `json:"version"`
	StatusCode    int     `json:"status_code"`
	StatusMessage string  `json:"status_message"`
	Time          string  `json:"time"`
	Cost          float64 `json:"cost"`
	TasksCount    int     `json:"tasks_count"`
	TasksError    int     `json:"tasks_error"`
	Tasks         []Task  `json:"tasks"`
}

// Task is one unit of work inside an envelope
type Task struct {
	ID            string      `json:"id"`
	StatusCode    int         `json:"status_code"`
	StatusMessage string      `json:"status_message"`
	Time          string      `json:"time"`
	Cost          float64     `json:"cost"`
	ResultCount   int         `json:"result_count"`
	Path          []string    `json:"path"`
	Data          interface{} `json:"data"`
	Result        interface{} `json:"result"`
}

// Succeeded reports whether the envelope carries a populated task
func (e *Envelope) Succeeded() bool {
	return e.StatusCode == StatusOK && e.TasksError == 0 && len(e.Tasks) == 1
}
