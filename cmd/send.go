package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhon1466/PeerDrop/internal/config"
	"github.com/jhon1466/PeerDrop/internal/files"
	"github.com/jhon1466/PeerDrop/internal/transfer"
	"github.com/jhon1466/PeerDrop/internal/ui"
)

var flagRoom string

var sendCmd = &cobra.Command{
	Use:     "send <file>",
	Aliases: []string{"s"},
	Short:   "Send a file to a receiver",
	Long: `Create a room on the signaling server and send one file to the peer that
joins it. Without --room a random 7 character room id is generated.

Examples:
  peerdrop send report.pdf
  peerdrop send --room AB12CD3 report.pdf
  peerdrop send --discover report.pdf
  peerdrop send --server broker.example.com --relay --turn turn:turn.example.com:3478 report.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendFile(cmd.Context(), args[0])
	},
}

func sendFile(ctx context.Context, path string) error {
	cfg, err := loadConfig(ctx, config.Options{})
	if err != nil {
		return err
	}

	info, err := files.ValidateFile(path, cfg.MaxFileSize)
	if err != nil {
		return err
	}
	displayFileTable(info)

	f, err := os.Open(info.Path)
	if err != nil {
		return transfer.NewFileError("open file", info.Name, err)
	}
	defer f.Close()

	fmt.Println()
	s, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	events := s.Events()

	roomID, err := s.CreateRoom(ctx, flagRoom)
	if err != nil {
		return transfer.NewError("create room", err)
	}
	ui.RenderRoomInfo(roomID, cfg.ServerURL)

	if err := waitForPeer(ctx, s, "Waiting for receiver to join..."); err != nil {
		return err
	}
	fmt.Println()

	sendCtx, cancelSend := context.WithCancel(ctx)
	defer cancelSend()
	uiCtx, cancelUI := context.WithCancel(ctx)
	defer cancelUI()

	done := make(chan error, 1)
	go func() {
		err := s.SendFile(sendCtx, transfer.FileSource{
			Name:     info.Name,
			MimeType: info.MimeType,
			Size:     info.Size,
			Reader:   f,
		})
		if err != nil {
			cancelUI()
		}
		done <- err
	}()

	model, uiErr := ui.RunTransfer(uiCtx, ui.NewTransferModel(ui.ModeSend, info.Name, info.Size, events))
	if uiErr != nil || model.Err() != nil {
		cancelSend()
	}
	sendErr := <-done

	switch {
	case model.Cancelled():
		return ui.ErrCancelled
	case sendErr != nil:
		return sendError(info.Name, sendErr)
	case uiErr != nil:
		return uiErr
	case model.Err() != nil:
		return model.Err()
	}

	waitForPeerExit(events, peerExitTimeout)

	fmt.Println()
	ui.RenderTransferSummary(summarize("Complete", info.Name, info.Size, model.Elapsed(), ""))
	return nil
}

// sendError keeps errors the engine already attributed to an operation and
// wraps anything else.
func sendError(name string, err error) error {
	if transfer.IsTransferError(err) {
		return err
	}
	return transfer.NewFileError("send", name, err)
}

func displayFileTable(info files.FileInfo) {
	fmt.Println()
	ui.RenderFileTable([]ui.FileTableItem{{Name: info.Name, Size: info.Size, Type: info.MimeType}})
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "Room id to create (generated when empty)")
}
