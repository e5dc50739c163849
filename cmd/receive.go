package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jhon1466/PeerDrop/internal/config"
	"github.com/jhon1466/PeerDrop/internal/files"
	"github.com/jhon1466/PeerDrop/internal/transfer"
	"github.com/jhon1466/PeerDrop/internal/ui"
	"github.com/jhon1466/PeerDrop/internal/utils"
)

var (
	flagReceiverDir     string
	flagReceiverMaxSize int64
)

var receiveCmd = &cobra.Command{
	Use:     "receive <room-id>",
	Aliases: []string{"r"},
	Short:   "Receive a file from a sender",
	Long: `Join a sender's room and save the file it sends. Room ids are case-insensitive.

Examples:
  peerdrop receive AB12CD3
  peerdrop receive ab12cd3 --dir ~/Downloads
  peerdrop receive --discover AB12CD3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return receiveFile(cmd.Context(), args[0])
	},
}

func receiveFile(ctx context.Context, room string) error {
	cfg, err := loadConfig(ctx, config.Options{
		OutputDir:   flagReceiverDir,
		MaxFileSize: flagReceiverMaxSize,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	s, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	events := s.Events()

	roomID, err := s.JoinRoom(ctx, room)
	if err != nil {
		return transfer.NewError("join room", err)
	}
	ui.PrintSuccessf("Joined room %s", roomID)

	if err := waitForPeer(ctx, s, "Connecting to sender..."); err != nil {
		return err
	}
	fmt.Println()

	model, err := ui.RunTransfer(ctx, ui.NewTransferModel(ui.ModeReceive, "", 0, events))
	if err != nil {
		return err
	}
	if model.Err() != nil {
		return model.Err()
	}

	file := model.Received()
	path, err := files.Save(cfg.OutputDir, file.Name, file.Data)
	if err != nil {
		return transfer.NewFileError("save", file.Name, err)
	}
	if notice := renameNotice(file.Name, path); notice != "" {
		ui.PrintWarning(notice)
	}

	fmt.Println()
	ui.RenderTransferSummary(summarize("Complete", file.Name, int64(len(file.Data)), model.Elapsed(), path))
	return nil
}

// renameNotice describes a save that had to pick a new name because the
// sanitized one was taken. Stripping directories alone is not a rename.
func renameNotice(name, path string) string {
	want, got := utils.SafeFilename(name), filepath.Base(path)
	if got == want {
		return ""
	}
	return fmt.Sprintf("%s already exists, saved as %s", want, got)
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVarP(&flagReceiverDir, "dir", "d", "", "Directory to save the received file")
	receiveCmd.Flags().Int64Var(&flagReceiverMaxSize, "max-size", 0, "Largest file to accept in bytes (default 2 GiB)")
}
