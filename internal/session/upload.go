package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
)

// UploadFile sends a file for analysis and records the result on the chat
// that was active when the upload began. Starting another upload or a new
// chat cancels it; a cancelled upload leaves no trace.
func (c *Controller) UploadFile(ctx context.Context, filename string, content []byte) error {
	id := c.activeOrNew()

	uploadCtx, seq := c.beginUpload(ctx)
	defer c.endUpload(seq)

	c.view.Notice(fmt.Sprintf("Analyzing %s...", filename))
	analysis, err := c.remote.AnalyzeFile(uploadCtx, filename, content)
	if !c.uploadCurrent(seq) || uploadCtx.Err() != nil || errors.Is(err, context.Canceled) {
		log.Debug().Str("file", filename).Msg("upload cancelled")
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("file analysis failed")
		c.view.Alert("File analysis failed: " + err.Error())
		return fmt.Errorf("upload %s: %w", filename, err)
	}

	text := fmt.Sprintf("Analysis of %s:\n\n%s", filename, analysis)
	if !c.chats.AddMessageToChat(id, chat.RoleAssistant, text) {
		return nil
	}
	c.chats.AttachFileAnalysis(id, chat.FileAnalysis{Filename: filename, Analysis: analysis})
	c.showLast(id)
	c.renderList()
	return nil
}

func (c *Controller) beginUpload(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()

	if c.uploadCancel != nil {
		c.uploadCancel()
	}
	c.uploadSeq++
	c.uploadCancel = cancel
	return ctx, c.uploadSeq
}

func (c *Controller) endUpload(seq uint64) {
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()

	if c.uploadSeq == seq && c.uploadCancel != nil {
		c.uploadCancel()
		c.uploadCancel = nil
	}
}

func (c *Controller) uploadCurrent(seq uint64) bool {
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()
	return c.uploadSeq == seq && c.uploadCancel != nil
}

func (c *Controller) cancelUpload() {
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()

	if c.uploadCancel != nil {
		c.uploadCancel()
		c.uploadCancel = nil
	}
	c.uploadSeq++
}
