package models

// TaskState is the lifecycle position of a download task.
type TaskState string

const (
	TaskPending     TaskState = "pending"
	TaskProbing     TaskState = "probing"
	TaskDownloading TaskState = "downloading"
	TaskPromoting   TaskState = "promoting"
	TaskFinished    TaskState = "finished"
	TaskFailed      TaskState = "failed"
	TaskCancelled   TaskState = "cancelled"
)

// IsTerminal reports whether no further transitions can happen.
func (s TaskState) IsTerminal() bool {
	return s == TaskFinished || s == TaskFailed || s == TaskCancelled
}

// Valid reports whether s is a known state.
func (s TaskState) Valid() bool {
	switch s {
	case TaskPending, TaskProbing, TaskDownloading, TaskPromoting, TaskFinished, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

func (s TaskState) String() string { return string(s) }
