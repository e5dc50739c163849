package transfer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/jhon1466/PeerDrop/internal/event"
	"github.com/jhon1466/PeerDrop/internal/logging"
	"github.com/jhon1466/PeerDrop/internal/utils"
)

// FileSource describes a file to send.
type FileSource struct {
	Name     string
	MimeType string
	Size     int64
	Reader   io.ReaderAt
}

// incoming is the receiver side of a transfer.
type incoming struct {
	info     FileInfo
	buf      []byte
	received int
}

// Engine sends and reconstructs files over one data channel. Frames from the
// peer must be fed to HandleMessage in delivery order.
type Engine struct {
	ch      Channel
	flow    *flow
	bus     *event.Bus
	maxSize int64
	log     zerolog.Logger

	ackTimeout time.Duration
	resetDelay time.Duration

	mu         sync.Mutex
	sending    bool
	ack        chan struct{}
	rejected   chan string
	recv       *incoming
	resetTimer *time.Timer
}

func NewEngine(ch Channel, bus *event.Bus, maxSize int64) *Engine {
	return &Engine{
		ch:         ch,
		flow:       newFlow(ch),
		bus:        bus,
		maxSize:    maxSize,
		log:        logging.Component("transfer"),
		ackTimeout: AckTimeout,
		resetDelay: ResetDelay,
	}
}

// SendFile runs the sender side of a transfer. It returns once file-complete
// has been handed to the channel.
func (e *Engine) SendFile(ctx context.Context, src FileSource) error {
	if e.ch.ReadyState() != webrtc.DataChannelStateOpen {
		return NewError("send file", ErrChannelNotOpen)
	}

	e.mu.Lock()
	if e.sending {
		e.mu.Unlock()
		return NewError("send file", ErrTransferInProgress)
	}
	e.sending = true
	ack := make(chan struct{}, 1)
	rejected := make(chan string, 1)
	e.ack = ack
	e.rejected = rejected
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.sending = false
		e.ack = nil
		e.rejected = nil
		e.mu.Unlock()
	}()

	checksum, err := fileChecksum(src)
	if err != nil {
		return NewFileError("checksum", src.Name, err)
	}

	total := TotalChunks(src.Size)
	info := FileInfo{
		Name:        src.Name,
		Size:        src.Size,
		MimeType:    src.MimeType,
		TotalChunks: total,
		Checksum:    checksum,
	}

	log := e.log.With().Str("file", src.Name).Int64("size", src.Size).Int("chunks", total).Logger()
	log.Debug().Msg("sending file info")

	frame, err := Encode(MessageTypeFileInfo, info)
	if err != nil {
		return err
	}
	if err := e.send(ctx, frame); err != nil {
		return NewFileError("send file info", src.Name, err)
	}

	select {
	case <-ack:
		log.Debug().Msg("file info acknowledged")
	case reason := <-rejected:
		return NewFileError("send file info", src.Name, rejection(reason))
	case <-time.After(e.ackTimeout):
		log.Debug().Dur("timeout", e.ackTimeout).Msg("no file info acknowledgement, proceeding")
	case <-ctx.Done():
		return NewFileError("wait for ack", src.Name, ctx.Err())
	}

	e.bus.Status(fmt.Sprintf("Sending %s (%s)", src.Name, utils.FormatSize(src.Size)))

	chunk := make([]byte, ChunkSize)
	for i := 0; i < total; i++ {
		if e.ch.ReadyState() != webrtc.DataChannelStateOpen {
			return NewFileError("send chunk", src.Name, ErrChannelClosed)
		}
		select {
		case reason := <-rejected:
			return NewFileError("send chunk", src.Name, rejection(reason))
		default:
		}
		if err := e.flow.wait(ctx, HighWaterMark); err != nil {
			return NewFileError("send chunk", src.Name, err)
		}

		offset := int64(i) * ChunkSize
		n := int(min(ChunkSize, src.Size-offset))
		read, err := src.Reader.ReadAt(chunk[:n], offset)
		if read < n {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return NewFileError("read chunk", src.Name, err)
		}

		frame, err := Encode(MessageTypeFileChunk, FileChunk{Index: i, Bytes: chunk[:n]})
		if err != nil {
			return err
		}
		if err := e.send(ctx, frame); err != nil {
			return NewFileError("send chunk", src.Name, err)
		}

		e.bus.Progress(float64(i+1) / float64(total) * 100)
	}

	if err := e.flow.wait(ctx, HighWaterMark); err != nil {
		return NewFileError("send complete", src.Name, err)
	}
	select {
	case reason := <-rejected:
		return NewFileError("send complete", src.Name, rejection(reason))
	default:
	}
	frame, err = Encode(MessageTypeFileComplete, nil)
	if err != nil {
		return err
	}
	if err := e.send(ctx, frame); err != nil {
		return NewFileError("send complete", src.Name, err)
	}

	log.Info().Msg("file sent")
	e.bus.Publish(event.Event{Type: event.TransferComplete, Text: fmt.Sprintf("Sent %s", src.Name)})
	e.scheduleReset()
	return nil
}

// send writes one frame. A full send queue is retried exactly once after the
// buffer drops to LowWaterMark.
func (e *Engine) send(ctx context.Context, frame []byte) error {
	err := e.ch.Send(frame)
	if err == nil || !isQueueFull(err) {
		return err
	}

	e.log.Debug().Uint64("buffered", e.ch.BufferedAmount()).Msg("send queue full, waiting to retry")
	if werr := e.flow.wait(ctx, LowWaterMark); werr != nil {
		return werr
	}

	if err := e.ch.Send(frame); err != nil {
		if isQueueFull(err) {
			return WrapError("send", ErrSendQueueFull, "retry failed")
		}
		return err
	}
	return nil
}

// HandleMessage routes one frame received from the peer.
func (e *Engine) HandleMessage(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		e.log.Warn().Err(err).Msg("dropping undecodable frame")
		return
	}

	switch msg.Type {
	case MessageTypeFileInfo:
		var info FileInfo
		if err := msg.DecodePayload(&info); err != nil {
			e.abortReceive(NewError("receive file info", err))
			return
		}
		e.handleFileInfo(info)

	case MessageTypeFileInfoReceived:
		e.mu.Lock()
		if e.ack != nil {
			select {
			case e.ack <- struct{}{}:
			default:
			}
		}
		e.mu.Unlock()

	case MessageTypeFileChunk:
		var chunk FileChunk
		if err := msg.DecodePayload(&chunk); err != nil {
			e.abortReceive(NewError("receive chunk", err))
			return
		}
		e.handleChunk(chunk)

	case MessageTypeFileError:
		var rej FileRejection
		if err := msg.DecodePayload(&rej); err != nil {
			e.log.Warn().Err(err).Msg("undecodable file error payload")
		}
		e.mu.Lock()
		ch := e.rejected
		if ch != nil {
			select {
			case ch <- rej.Reason:
			default:
			}
		}
		e.mu.Unlock()
		if ch == nil {
			e.log.Warn().Str("reason", rej.Reason).Msg("peer reported a failed transfer")
		}

	case MessageTypeFileComplete:
		e.log.Debug().Msg("peer reported transfer complete")
		e.bus.Publish(event.Event{Type: event.TransferComplete, Text: "Transfer complete"})
		e.scheduleReset()

	default:
		e.log.Warn().Str("type", msg.Type).Msg("unknown data channel message")
	}
}

func (e *Engine) handleFileInfo(info FileInfo) {
	if err := e.validateInfo(info); err != nil {
		e.abortReceive(err)
		return
	}

	e.mu.Lock()
	if e.recv != nil {
		e.log.Warn().Str("file", e.recv.info.Name).Msg("discarding unfinished transfer")
	}
	e.recv = &incoming{info: info, buf: make([]byte, 0, info.Size)}
	e.mu.Unlock()

	e.log.Info().Str("file", info.Name).Int64("size", info.Size).Msg("receiving file")

	frame, err := Encode(MessageTypeFileInfoReceived, nil)
	if err == nil {
		err = e.ch.Send(frame)
	}
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to acknowledge file info")
	}

	e.bus.Status(fmt.Sprintf("Receiving %s (%s)", info.Name, utils.FormatSize(info.Size)))
	e.bus.Progress(0)

	if info.TotalChunks == 0 {
		e.finishReceive()
	}
}

func (e *Engine) validateInfo(info FileInfo) error {
	switch {
	case info.Size < 0:
		return WrapError("receive file info", ErrInvalidFileInfo, "negative size")
	case e.maxSize > 0 && info.Size > e.maxSize:
		return WrapError("receive file info", ErrFileTooLarge,
			fmt.Sprintf("%s > %s", utils.FormatSize(info.Size), utils.FormatSize(e.maxSize)))
	case info.TotalChunks != TotalChunks(info.Size):
		return WrapError("receive file info", ErrInvalidFileInfo,
			fmt.Sprintf("expected %d chunks, got %d", TotalChunks(info.Size), info.TotalChunks))
	}
	return nil
}

func (e *Engine) handleChunk(chunk FileChunk) {
	e.mu.Lock()
	r := e.recv
	if r == nil {
		e.mu.Unlock()
		e.log.Warn().Int("index", chunk.Index).Msg(ErrUnexpectedChunk.Error())
		return
	}

	var err error
	switch {
	case chunk.Index != r.received:
		err = WrapError("receive chunk", ErrChunkOutOfOrder,
			fmt.Sprintf("expected %d, got %d", r.received, chunk.Index))
	case int64(len(r.buf)+len(chunk.Bytes)) > r.info.Size:
		err = NewFileError("receive chunk", r.info.Name, ErrChunkOverflow)
	}
	if err != nil {
		e.mu.Unlock()
		e.abortReceive(err)
		return
	}

	r.buf = append(r.buf, chunk.Bytes...)
	r.received++
	done := r.received == r.info.TotalChunks
	percent := float64(r.received) / float64(r.info.TotalChunks) * 100
	e.mu.Unlock()

	e.bus.Progress(percent)
	if done {
		e.finishReceive()
	}
}

func (e *Engine) finishReceive() {
	e.mu.Lock()
	r := e.recv
	e.recv = nil
	e.mu.Unlock()

	if r == nil {
		return
	}

	if int64(len(r.buf)) != r.info.Size {
		e.reject(NewFileError("reconstruct", r.info.Name, ErrSizeMismatch))
		return
	}
	if len(r.info.Checksum) > 0 {
		sum := sha256.Sum256(r.buf)
		if !bytes.Equal(sum[:], r.info.Checksum) {
			e.reject(NewFileError("reconstruct", r.info.Name, ErrChecksumMismatch))
			return
		}
	}

	e.log.Info().Str("file", r.info.Name).Int64("size", r.info.Size).Msg("file reconstructed")
	e.bus.Publish(event.Event{
		Type: event.FileReceived,
		Text: fmt.Sprintf("Received %s", r.info.Name),
		File: &event.File{Name: r.info.Name, MimeType: r.info.MimeType, Data: r.buf},
	})
}

// abortReceive drops any partial buffer and reports err locally and to the
// sender.
func (e *Engine) abortReceive(err error) {
	e.mu.Lock()
	e.recv = nil
	e.mu.Unlock()
	e.reject(err)
}

// reject tells the sender to stop, then reports err.
func (e *Engine) reject(err error) {
	frame, ferr := Encode(MessageTypeFileError, FileRejection{Reason: err.Error()})
	if ferr == nil {
		ferr = e.ch.Send(frame)
	}
	if ferr != nil {
		e.log.Debug().Err(ferr).Msg("could not notify sender of failure")
	}
	e.fail(err)
}

func (e *Engine) fail(err error) {
	e.log.Error().Err(err).Msg("transfer failed")
	e.bus.Fail(err)
}

func (e *Engine) scheduleReset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resetTimer != nil {
		e.resetTimer.Stop()
	}
	e.resetTimer = time.AfterFunc(e.resetDelay, func() {
		e.bus.Progress(0)
	})
}

// Receiving reports whether a file is partly received.
func (e *Engine) Receiving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recv != nil
}

// Close releases receiver state. The channel itself belongs to the caller.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resetTimer != nil {
		e.resetTimer.Stop()
		e.resetTimer = nil
	}
	e.recv = nil
}

func rejection(reason string) error {
	if reason == "" {
		return ErrPeerRejected
	}
	return fmt.Errorf("%w: %s", ErrPeerRejected, reason)
}

func fileChecksum(src FileSource) ([]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(src.Reader, 0, src.Size)); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// IsTransferError reports whether err came from a transfer operation.
func IsTransferError(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}
