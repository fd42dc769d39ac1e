package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SeedsGreeting(t *testing.T) {
	s := New("")
	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, model.RoleAssistant, h[0].Role)
	assert.Equal(t, DefaultGreeting, h[0].Content)
	assert.NotEmpty(t, s.ID)
	assert.NotEqual(t, s.ID, New("").ID)
}

func TestTrimHistory(t *testing.T) {
	seed := model.Message{Role: model.RoleAssistant, Content: DefaultGreeting}
	msgs := []model.Message{seed}
	for i := 0; i < 10; i++ {
		msgs = append(msgs, model.Message{Role: model.RoleUser, Content: fmt.Sprint(i)})
		msgs = TrimHistory(msgs)

		assert.LessOrEqual(t, len(msgs), 3)
		assert.Equal(t, seed, msgs[0])
	}
	assert.Equal(t, "8", msgs[1].Content)
	assert.Equal(t, "9", msgs[2].Content)

	short := []model.Message{seed, {Content: "a"}}
	assert.Equal(t, short, TrimHistory(short))
}

func TestSession_HistoryIsCopy(t *testing.T) {
	s := New("hi")
	h := s.History()
	h[0].Content = "changed"
	assert.Equal(t, "hi", s.History()[0].Content)
}

func TestSession_TruncateKeepsSeed(t *testing.T) {
	s := New("")
	s.Append(model.Message{Role: model.RoleUser, Content: "q"})
	s.Truncate(0)
	assert.Equal(t, 1, s.Len())

	s.Append(model.Message{Content: "a"}, model.Message{Content: "b"})
	s.Truncate(2)
	assert.Equal(t, 2, s.Len())
	s.Truncate(10)
	assert.Equal(t, 2, s.Len())
}

func TestSession_Trim(t *testing.T) {
	s := New("")
	for i := 0; i < 4; i++ {
		s.Append(model.Message{Role: model.RoleUser, Content: fmt.Sprint(i)})
	}
	s.Trim()
	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, DefaultGreeting, h[0].Content)
	assert.Equal(t, "3", h[2].Content)
}

func TestSession_Collection(t *testing.T) {
	s := New("")
	assert.Nil(t, s.Collection())
	c := &vectorstore.Collection{Name: "Lab4Collection"}
	s.SetCollection(c)
	assert.Same(t, c, s.Collection())
	assert.NotNil(t, s.Checks())
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager("Hello!", time.Minute, nil)

	s := m.GetOrCreate("")
	assert.Equal(t, "Hello!", s.History()[0].Content)
	assert.Same(t, s, m.GetOrCreate(s.ID))

	named := m.GetOrCreate("cli")
	assert.Equal(t, "cli", named.ID)
	assert.Equal(t, 2, m.Count())
}

func TestManager_EndRunsHook(t *testing.T) {
	var mu sync.Mutex
	var ended []string
	m := NewManager("", time.Minute, func(s *Session) {
		mu.Lock()
		defer mu.Unlock()
		ended = append(ended, s.ID)
	})

	s := m.GetOrCreate("a")
	m.End(s.ID)
	m.End("unknown")

	assert.Equal(t, []string{"a"}, ended)
	assert.NotSame(t, s, m.GetOrCreate("a"))
}

func TestManager_IdleExpiry(t *testing.T) {
	var mu sync.Mutex
	var ended int
	m := NewManager("", 20*time.Millisecond, func(*Session) {
		mu.Lock()
		defer mu.Unlock()
		ended++
	})

	m.GetOrCreate("idle")
	time.Sleep(40 * time.Millisecond)
	m.Sweep()

	mu.Lock()
	assert.Equal(t, 1, ended)
	mu.Unlock()
	assert.Equal(t, 0, m.Count())
}

func TestManager_Close(t *testing.T) {
	var ended int
	m := NewManager("", time.Minute, func(*Session) { ended++ })
	m.GetOrCreate("a")
	m.GetOrCreate("b")
	m.Close()

	assert.Equal(t, 2, ended)
	assert.Equal(t, 0, m.Count())
}
