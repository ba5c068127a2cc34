package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/event"
	chatService "github.com/Alex12012019/DeepSeekAPI/internal/service/chat"
	"github.com/Alex12012019/DeepSeekAPI/internal/session"
)

const helpText = `Commands:
  /new              start a new chat
  /save             save the active chat
  /list             show conversations
  /open <n|id>      open a conversation
  /rename [n|id]    rename a conversation (default: active)
  /delete [n|id]    delete a conversation (default: active)
  /upload <path>    analyze a file in the active chat
  /help             show this help
  /quit             save and exit
Anything else is sent to the assistant.`

// userErrors are reported inline; other failures were already surfaced by
// the controller.
var userErrors = []error{
	session.ErrEmptyMessage,
	session.ErrDuplicateMessage,
	session.ErrSendInFlight,
	session.ErrNoActiveChat,
	session.ErrNameRequired,
	session.ErrSaveInFlight,
	session.ErrDeleteInFlight,
	session.ErrChatNotFound,
	errUnknownChat,
}

var errUnknownChat = errors.New("no such conversation, run /list")

// usageError is a mistake in the typed command itself.
type usageError string

func (e usageError) Error() string { return string(e) }

type repl struct {
	ctrl *session.Controller
	term *terminal
	out  io.Writer

	uploads sync.WaitGroup
}

func runREPL(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	in := newLineSource(cmd.InOrStdin())
	term := newTerminal(out, in)
	remote := newClient()

	ctrl := session.New(chatService.NewManager(), remote, term, term,
		session.WithAutosaveInterval(cfg.Client.AutosaveInterval))
	if err := ctrl.Start(ctx); err != nil {
		log.Warn().Err(err).Str("server", cfg.Client.BaseURL).Msg("could not reach chat server")
	}

	var subscriber sync.WaitGroup
	subscriber.Add(1)
	go func() {
		defer subscriber.Done()
		err := remote.Subscribe(ctx, func(ev event.Event) {
			ctrl.HandleRemoteEvent(ctx, ev)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Msg("event stream closed")
		}
	}()

	r := &repl{ctrl: ctrl, term: term, out: out}
	fmt.Fprintln(out, headerStyle.Render("DeepSeek chat")+" "+dimStyle.Render("type /help for commands"))

	for {
		term.ask(">")
		line, ok := in.next(ctx)
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		quit, err := r.exec(ctx, line)
		r.report(err)
		if quit {
			break
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Client.RequestTimeout)
	defer cancel()
	err := ctrl.Shutdown(shutdownCtx)
	r.uploads.Wait()
	subscriber.Wait()
	if err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	return nil
}

// exec runs one input line and reports whether the session should end.
func (r *repl) exec(ctx context.Context, line string) (bool, error) {
	name, arg := parseCommand(line)
	switch name {
	case "":
		return false, r.ctrl.SendMessage(ctx, line)
	case "quit", "exit", "q":
		return true, nil
	case "help":
		fmt.Fprintln(r.out, helpText)
		return false, nil
	case "new":
		return false, r.ctrl.NewChat(ctx)
	case "save":
		return false, r.ctrl.SaveChat(ctx, false)
	case "list":
		if err := r.ctrl.RefreshList(ctx); err != nil {
			return false, nil
		}
		r.term.printList()
		return false, nil
	case "open":
		return false, r.dispatch(ctx, session.CommandOpen, arg)
	case "rename":
		return false, r.dispatch(ctx, session.CommandRename, arg)
	case "delete":
		return false, r.dispatch(ctx, session.CommandDelete, arg)
	case "upload":
		return false, r.upload(ctx, arg)
	default:
		return false, usageError(fmt.Sprintf("unknown command /%s, try /help", name))
	}
}

func (r *repl) dispatch(ctx context.Context, kind session.CommandKind, ref string) error {
	cmd := session.Command{Kind: kind}
	if ref == "" && kind != session.CommandOpen {
		cmd.ID = r.ctrl.Chats().CurrentID()
		if cmd.ID == "" {
			return session.ErrNoActiveChat
		}
	} else {
		item, ok := r.term.resolve(ref)
		if !ok {
			return errUnknownChat
		}
		cmd.ID, cmd.Name = item.ID, item.Name
	}
	return r.ctrl.Dispatch(ctx, cmd)
}

// upload runs in the background so chatting can continue; a later upload
// or a new chat cancels it.
func (r *repl) upload(ctx context.Context, path string) error {
	if path == "" {
		return usageError("usage: /upload <path>")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return usageError(fmt.Sprintf("cannot read %s: %v", path, err))
	}

	r.uploads.Add(1)
	go func() {
		defer r.uploads.Done()
		if err := r.ctrl.UploadFile(ctx, filepath.Base(path), content); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("upload failed")
		}
	}()
	return nil
}

func (r *repl) report(err error) {
	if err == nil {
		return
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			r.term.Alert(err.Error())
			return
		}
	}
	var usage usageError
	if errors.As(err, &usage) {
		r.term.Alert(usage.Error())
		return
	}
	log.Debug().Err(err).Msg("command failed")
}

// parseCommand splits "/name arg" input. Plain text yields an empty name.
func parseCommand(line string) (name, arg string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", ""
	}
	name, arg, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}
