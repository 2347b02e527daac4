package provider

// Logical status codes of the keyword-data provider. The transport may answer
// 200 while the task-level code still reports an error, so both layers are
// carried.
const (
	StatusOK            = 20000
	StatusTaskCreated   = 20100
	StatusTaskInQueue   = 40601
	StatusTaskInProcess = 40602
)

type VolumeRow struct {
	Keyword string
	Volume  int64
}

// CallResult is the normalized outcome of one provider call. Err is set only
// for transport failures; logical failures carry a status and a message.
type CallResult struct {
	OK            bool
	HTTPStatus    int
	LogicalStatus int
	Message       string
	RateLimited   bool
	TaskID        string
	Rows          []VolumeRow
	LatencyMs     int64
	Err           error
}

// InProgress reports whether the task was accepted but has not produced a
// result yet; the caller should poll again.
func (r *CallResult) InProgress() bool {
	return r.LogicalStatus == StatusTaskInQueue || r.LogicalStatus == StatusTaskInProcess
}
