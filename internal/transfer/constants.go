package transfer

import "time"

const (
	MessageTypeFileInfo         = "file-info"
	MessageTypeFileInfoReceived = "file-info-received"
	MessageTypeFileChunk        = "file-chunk"
	MessageTypeFileComplete     = "file-complete"
	MessageTypeFileError        = "file-error"
)

const (
	ChunkSize     = 16 * 1024
	HighWaterMark = 256 * 1024
	LowWaterMark  = HighWaterMark / 2

	AckTimeout   = 2 * time.Second
	PollInterval = 50 * time.Millisecond
	PollCeiling  = 5 * time.Second
	ResetDelay   = 2 * time.Second
)

// TotalChunks returns how many ChunkSize pieces a file of size bytes needs.
func TotalChunks(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + ChunkSize - 1) / ChunkSize)
}
