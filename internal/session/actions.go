package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
)

// NewChat starts an empty chat and makes it active.
func (c *Controller) NewChat(ctx context.Context) error {
	if cur, ok := c.chats.Current(); ok && isDirty(cur) {
		if !c.dialogs.Confirm(ctx, "Start a new chat? Unsaved changes in the current chat will not be saved.") {
			return nil
		}
	}
	c.cancelUpload()

	c.chats.CreateChat("")
	c.view.ClearMessages()
	c.renderList()
	return nil
}

// SendMessage appends the user's text to the active chat, asks the assistant
// and appends its reply. Without an active chat one is created.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !c.sendSlot.TryAcquire(1) {
		return ErrSendInFlight
	}
	defer c.sendSlot.Release(1)

	c.view.SetSending(true)
	defer c.view.SetSending(false)

	id := c.activeOrNew()
	before, ok := c.chats.Chat(id)
	if !ok {
		return ErrChatNotFound
	}
	history := before.Messages()

	if !c.chats.AddMessageToChat(id, chat.RoleUser, text) {
		return ErrDuplicateMessage
	}
	c.showLast(id)

	reply, err := c.remote.SendMessage(ctx, history, text)
	if err != nil {
		log.Error().Err(err).Str("chat", id).Msg("send message failed")
		c.chats.AddMessageToChat(id, chat.RoleAssistant, "Error: "+err.Error())
		c.showLast(id)
		c.renderList()
		return fmt.Errorf("send message: %w", err)
	}

	c.chats.AddMessageToChat(id, chat.RoleAssistant, reply)
	c.showLast(id)
	c.renderList()
	return nil
}

// SaveChat saves the active chat. A manual save of a new chat prompts for a
// name; a silent save lets the store derive one from the first user turn.
func (c *Controller) SaveChat(ctx context.Context, silent bool) error {
	id := c.chats.CurrentID()
	if id == "" {
		return ErrNoActiveChat
	}
	return c.save(ctx, id, silent)
}

func (c *Controller) save(ctx context.Context, id string, silent bool) error {
	if !c.saveSlot.TryAcquire(1) {
		return ErrSaveInFlight
	}
	defer c.saveSlot.Release(1)

	cur, ok := c.chats.Chat(id)
	if !ok {
		return ErrChatNotFound
	}
	if cur.Len() == 0 {
		if !silent {
			c.view.Alert("There are no messages to save")
		}
		return ErrEmptyChat
	}
	if !cur.IsNew() && !cur.IsEdit() {
		return nil
	}

	rec := cur.Serialize()
	if cur.IsNew() {
		rec.Filename = ""
		switch {
		case !silent:
			initial := rec.Name
			if initial == chat.DefaultName {
				initial = chat.DeriveName(rec.Messages)
			}
			name, ok := c.dialogs.Prompt(ctx, "Conversation name:", initial)
			name = chat.SanitizeName(name)
			if !ok || name == "" {
				return ErrNameRequired
			}
			rec.Name = name
		case rec.Name == chat.DefaultName:
			rec.Name = ""
		}
	}

	if !silent {
		c.view.Notice("Saving...")
	}
	saved, err := c.remote.Save(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("chat", id).Bool("silent", silent).Msg("save failed")
		if !silent {
			c.view.Alert("Save failed: " + err.Error())
		}
		return fmt.Errorf("save chat: %w", err)
	}

	if _, ok := c.chats.ConfirmSaved(id, cur.Revision(), saved); !ok {
		// Deleted while the request was in flight.
		log.Debug().Str("chat", id).Msg("saved chat no longer held")
	}
	if !silent {
		if cur.IsNew() {
			c.view.Notice("Conversation saved")
		} else {
			c.view.Notice("Conversation updated")
		}
	}
	_ = c.RefreshList(ctx)
	return nil
}

// RenameChat prompts for a new name. Persisted chats are renamed on the store
// too: by a silent save when the history is loaded, otherwise through the
// rename endpoint.
func (c *Controller) RenameChat(ctx context.Context, id, currentName string) error {
	target, ok := c.chats.Chat(id)
	if !ok {
		return ErrChatNotFound
	}
	if currentName == "" {
		currentName = target.Name()
	}

	name, ok := c.dialogs.Prompt(ctx, "New name:", currentName)
	name = chat.SanitizeName(name)
	if !ok || name == "" || name == currentName {
		return nil
	}

	if !target.IsNew() && !historyLoaded(target) {
		if err := c.remote.Rename(ctx, id, name); err != nil {
			c.view.Alert("Rename failed: " + err.Error())
			return fmt.Errorf("rename chat: %w", err)
		}
		_ = c.RefreshList(ctx)
		return nil
	}

	c.chats.RenameChat(id, name)
	c.renderList()
	if target.IsNew() {
		return nil
	}

	err := c.save(ctx, id, true)
	if errors.Is(err, ErrSaveInFlight) {
		// The running save snapshot predates the rename; push it directly.
		err = c.remote.Rename(ctx, id, name)
	}
	if err != nil {
		c.view.Alert("Rename failed: " + err.Error())
		return fmt.Errorf("rename chat: %w", err)
	}
	return nil
}

// DeleteChat asks for confirmation and removes the chat locally and, when it
// was ever saved, on the store.
func (c *Controller) DeleteChat(ctx context.Context, id string) error {
	if !c.deleteSlot.TryAcquire(1) {
		return ErrDeleteInFlight
	}
	defer c.deleteSlot.Release(1)

	target, ok := c.chats.Chat(id)
	if !ok {
		return ErrChatNotFound
	}
	if !c.dialogs.Confirm(ctx, fmt.Sprintf("Delete %q?", target.Name())) {
		return nil
	}

	if !target.IsNew() {
		if err := c.remote.Delete(ctx, id); err != nil {
			log.Error().Err(err).Str("chat", id).Msg("delete failed")
			c.view.Alert("Delete failed: " + err.Error())
			return fmt.Errorf("delete chat: %w", err)
		}
	}

	wasActive := c.chats.CurrentID() == id
	c.chats.DeleteChatByID(id)
	if wasActive {
		c.cancelUpload()
		c.view.ClearMessages()
	}
	if target.IsNew() {
		c.renderList()
		return nil
	}
	_ = c.RefreshList(ctx)
	return nil
}

// OpenChat makes id the active chat, loading its history from the store
// unless a local copy holds unsaved work.
func (c *Controller) OpenChat(ctx context.Context, id string) error {
	if cur, ok := c.chats.Current(); ok && cur.ID() != id && isDirty(cur) {
		if !c.dialogs.Confirm(ctx, "The current chat has unsaved changes. Open another one anyway?") {
			return nil
		}
	}

	target, ok := c.chats.Chat(id)
	keepLocal := ok && (target.IsNew() || (target.IsEdit() && historyLoaded(target)))
	if !keepLocal {
		rec, err := c.remote.Load(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("chat", id).Msg("load failed")
			c.view.Alert("Could not load the chat: " + err.Error())
			return fmt.Errorf("open chat: %w", err)
		}
		c.chats.UpsertLoaded(rec)
	}

	opened := c.chats.LoadChatByID(id)
	if opened == nil {
		return ErrChatNotFound
	}
	c.view.RenderMessages(opened.Messages())
	c.renderList()
	return nil
}

// activeOrNew returns the active chat id, creating a chat when there is none.
func (c *Controller) activeOrNew() string {
	if id := c.chats.CurrentID(); id != "" {
		return id
	}
	created := c.chats.CreateChat("")
	c.view.ClearMessages()
	c.renderList()
	return created.ID()
}

// showLast appends the chat's newest message to the view if it is active.
func (c *Controller) showLast(id string) {
	if c.chats.CurrentID() != c.chats.Resolve(id) {
		return
	}
	cur, ok := c.chats.Chat(id)
	if !ok {
		return
	}
	if msg, ok := cur.LastMessage(); ok {
		c.view.AppendMessage(msg)
	}
}

func isDirty(c *chat.Chat) bool {
	return c.Len() > 0 && (c.IsNew() || c.IsEdit())
}

// historyLoaded reports whether the chat holds its messages rather than just
// a list entry. The store never keeps an empty conversation.
func historyLoaded(c *chat.Chat) bool {
	return c.Len() > 0
}
