package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
)

type fakeChatModel struct {
	mu     sync.Mutex
	reply  string
	chunks []string
	err    error
	seen   [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if len(f.chunks) > 0 {
		f.mu.Lock()
		f.seen = append(f.seen, input)
		f.mu.Unlock()

		msgs := make([]*schema.Message, 0, len(f.chunks))
		for _, c := range f.chunks {
			msgs = append(msgs, schema.AssistantMessage(c, nil))
		}
		return schema.StreamReaderFromArray(msgs), nil
	}
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}

func TestReplyBuildsPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "Hi there"}
	svc, err := NewServiceWithModel(context.Background(), fake, Options{SystemPrompt: "be brief"})
	require.NoError(t, err)

	history := []chat.Message{
		chat.NewMessage(chat.RoleUser, "hello"),
		chat.NewMessage(chat.RoleAssistant, "hey"),
	}
	reply, err := svc.Reply(context.Background(), history, "how are you {today}?")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	input := fake.lastInput()
	require.Len(t, input, 4)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, "be brief", input[0].Content)
	assert.Equal(t, schema.User, input[1].Role)
	assert.Equal(t, schema.Assistant, input[2].Role)
	assert.Equal(t, "how are you {today}?", input[3].Content)
}

func TestReplyHistoryLimit(t *testing.T) {
	fake := &fakeChatModel{reply: "ok"}
	svc, err := NewServiceWithModel(context.Background(), fake, Options{HistoryLimit: 2})
	require.NoError(t, err)

	history := []chat.Message{
		chat.NewMessage(chat.RoleUser, "one"),
		chat.NewMessage(chat.RoleAssistant, "two"),
		chat.NewMessage(chat.RoleUser, "three"),
	}
	_, err = svc.Reply(context.Background(), history, "four")
	require.NoError(t, err)

	input := fake.lastInput()
	require.Len(t, input, 3)
	assert.Equal(t, "two", input[0].Content)
	assert.Equal(t, "three", input[1].Content)
	assert.Equal(t, "four", input[2].Content)
}

func TestReplyErrors(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("upstream down")}
	svc, err := NewServiceWithModel(context.Background(), fake, Options{})
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), nil, "hi")
	assert.ErrorContains(t, err, "upstream down")

	fake.err = nil
	fake.reply = "   "
	_, err = svc.Reply(context.Background(), nil, "hi")
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestNewServiceWithModelRequiresModel(t *testing.T) {
	_, err := NewServiceWithModel(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestStreamReplyDeliversChunks(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Hel", "", "lo ", "there"}}
	svc, err := NewServiceWithModel(context.Background(), fake, Options{})
	require.NoError(t, err)

	var deltas []string
	reply, err := svc.StreamReply(context.Background(), nil, "hi", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)
	assert.Equal(t, []string{"Hel", "lo ", "there"}, deltas)
}

func TestStreamReplyAbortsOnCallbackError(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"a", "b"}}
	svc, err := NewServiceWithModel(context.Background(), fake, Options{})
	require.NoError(t, err)

	stop := errors.New("client gone")
	_, err = svc.StreamReply(context.Background(), nil, "hi", func(string) error { return stop })
	assert.ErrorIs(t, err, stop)

	fake.chunks = []string{" ", ""}
	_, err = svc.StreamReply(context.Background(), nil, "hi", nil)
	assert.ErrorIs(t, err, ErrEmptyReply)
}
