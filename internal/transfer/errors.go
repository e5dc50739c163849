package transfer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrChannelNotOpen     = errors.New("channel not ready")
	ErrChannelClosed      = errors.New("channel closed")
	ErrSendQueueFull      = errors.New("send queue is full")
	ErrTransferInProgress = errors.New("a transfer is already in progress")
	ErrFileTooLarge       = errors.New("declared file size exceeds the limit")
	ErrInvalidFileInfo    = errors.New("invalid file info")
	ErrChunkOutOfOrder    = errors.New("chunk out of order")
	ErrChunkOverflow      = errors.New("chunk exceeds declared file size")
	ErrSizeMismatch       = errors.New("received size differs from declared size")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrUnexpectedChunk    = errors.New("chunk received without file info")
	ErrPeerRejected       = errors.New("receiver rejected the transfer")
)

type TransferError struct {
	Op      string
	File    string
	Err     error
	Details string
}

func (e *TransferError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}

func WrapError(op string, err error, details string) *TransferError {
	return &TransferError{Op: op, Err: err, Details: details}
}

// isQueueFull matches both our sentinel and the text browsers and pion
// return when the SCTP send buffer is exhausted.
func isQueueFull(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSendQueueFull) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "queue is full")
}
