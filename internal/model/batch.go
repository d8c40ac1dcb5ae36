package model

// TaskStatus is the closed set of statuses a Task may carry (spec §3).
type TaskStatus string

const (
	StatusPending          TaskStatus = "pending"
	StatusUploading        TaskStatus = "uploading"
	StatusDownloading      TaskStatus = "downloading"
	StatusInterrupted      TaskStatus = "interrupted"
	StatusCompleted        TaskStatus = "completed"
	StatusSkippedConflict  TaskStatus = "skipped_conflict"
	StatusSkippedMissing   TaskStatus = "skipped_missing"
	StatusSkippedNewer     TaskStatus = "skipped_newer"
	StatusErrorParent      TaskStatus = "error_parent"
	StatusErrorUpload      TaskStatus = "error_upload"
	StatusErrorDownload    TaskStatus = "error_download"
)

// IsSkipped reports whether s is one of the skipped_* terminal statuses.
func (s TaskStatus) IsSkipped() bool {
	switch s {
	case StatusSkippedConflict, StatusSkippedMissing, StatusSkippedNewer:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a task in this status requires no further work.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s.IsSkipped()
}

// IsError reports whether s is one of the error_* statuses.
func (s TaskStatus) IsError() bool {
	switch s {
	case StatusErrorParent, StatusErrorUpload, StatusErrorDownload:
		return true
	default:
		return false
	}
}

// Task is one row of a batch, corresponding to one file (spec §3, §6).
type Task struct {
	LocalPath             string     `json:"localPath"`
	RemotePath            string     `json:"remotePath"`
	Status                TaskStatus `json:"status"`
	FileUUID              string     `json:"fileUuid,omitempty"`
	UploadKey             string     `json:"uploadKey,omitempty"`
	LastChunk             int        `json:"lastChunk"`
	RemoteModificationTime int64     `json:"remoteModificationTime,omitempty"`
}

// ResumableState reports whether the task carries a resumable in-flight
// upload (spec §3's invariant: FileUUID and UploadKey are either both set
// or both absent).
func (t *Task) ResumableState() bool {
	return t.FileUUID != "" && t.UploadKey != ""
}

// OperationKind distinguishes upload from download batches.
type OperationKind string

const (
	OperationUpload   OperationKind = "upload"
	OperationDownload OperationKind = "download"
)

// BatchState is the durable per-batch record of spec §3 and §6, persisted
// as JSON under a well-known path (spec §4.6, §4.8).
type BatchState struct {
	OperationType     OperationKind `json:"operationType"`
	TargetRemotePath  string        `json:"targetRemotePath,omitempty"`
	RemotePath        string        `json:"remotePath,omitempty"`
	LocalDestination  string        `json:"localDestination,omitempty"`
	Tasks             []*Task       `json:"tasks"`
}

// Counts tallies task outcomes for the batch summary printed by the CLI.
// Whether the state file can be deleted is decided by Status.IsTerminal,
// not by these counts.
type Counts struct {
	Completed          int
	Skipped            int
	Errors             int
	CompletedPreviously int
}

func (b *BatchState) Counts() Counts {
	var c Counts
	for _, t := range b.Tasks {
		switch {
		case t.Status == StatusCompleted:
			c.Completed++
		case t.Status.IsSkipped():
			c.Skipped++
		case t.Status.IsError():
			c.Errors++
		}
	}
	return c
}
