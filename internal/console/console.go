// Package console is the interactive menu of the client: it reads commands,
// issues requests through a session and reports each result.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ytget/mp3-client/internal/session"
)

// Commands
const (
	CommandList     = "list"
	CommandDownload = "download"
	CommandExit     = "exit"
)

// Prompts and messages
const (
	PromptCommand = "list / download / exit: "
	PromptSong    = "Enter song name: "
	PromptArtist  = "Enter artist name: "

	MsgRequestSent    = "Request sent!"
	MsgUnknownCommand = "Please type list, download or exit"
	MsgMissingField   = "Song and artist names are required"
)

// Run reads commands from in until exit, end of input or a connection
// failure. Listing lines are printed by the session's listener; Run prints
// prompts and download results to out. A connection failure is returned.
func Run(ctx context.Context, in io.Reader, out io.Writer, req session.Requester) error {
	scanner := bufio.NewScanner(in)

	readLine := func(prompt string) (string, bool) {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		command, ok := readLine(PromptCommand)
		if !ok {
			return scanner.Err()
		}

		var err error
		switch strings.ToLower(command) {
		case CommandExit:
			return nil
		case CommandList:
			fmt.Fprintln(out, MsgRequestSent)
			_, err = req.SendListRequest(ctx)
		case CommandDownload:
			song, ok := readLine(PromptSong)
			if !ok {
				return scanner.Err()
			}
			artist, ok := readLine(PromptArtist)
			if !ok {
				return scanner.Err()
			}
			if song == "" || artist == "" {
				fmt.Fprintln(out, MsgMissingField)
				continue
			}
			fmt.Fprintln(out, MsgRequestSent)
			err = download(ctx, out, req, song, artist)
		default:
			if command != "" {
				fmt.Fprintln(out, MsgUnknownCommand)
			}
			continue
		}

		if err != nil {
			fmt.Fprintf(out, "Transfer failed: %v\n", err)
			if isFatal(err) {
				return err
			}
		}
	}
}

func download(ctx context.Context, out io.Writer, req session.Requester, song, artist string) error {
	outcome, err := req.SendDownloadRequest(ctx, song, artist)
	if err != nil {
		return err
	}
	if outcome.NotFound {
		fmt.Fprintf(out, "No such song: %s by %s\n", song, artist)
		return nil
	}
	fmt.Fprintf(out, "Saved %s (%d bytes)\n", outcome.Path, outcome.Size)
	return nil
}

// isFatal reports errors after which the session cannot serve another command
func isFatal(err error) bool {
	return errors.Is(err, session.ErrTransport) ||
		errors.Is(err, session.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
